package acl

// Schema creates the permission tables the Store queries.  The auth
// component runs it as part of its migrations.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS role (
		id      BIGINT AUTO_INCREMENT PRIMARY KEY,
		name    VARCHAR(100) NOT NULL UNIQUE,
		enabled BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS role_acl (
		role_id   BIGINT NOT NULL,
		model     VARCHAR(100) NOT NULL,
		action    VARCHAR(100) NOT NULL,
		permitted BOOLEAN NOT NULL DEFAULT TRUE,
		PRIMARY KEY (role_id, model, action)
	)`,
	`CREATE TABLE IF NOT EXISTS user_role (
		user_id BIGINT NOT NULL,
		role_id BIGINT NOT NULL,
		PRIMARY KEY (user_id, role_id)
	)`,
	`CREATE TABLE IF NOT EXISTS object_permission (
		user_id   BIGINT NOT NULL,
		model     VARCHAR(100) NOT NULL,
		object_id VARCHAR(64) NOT NULL,
		perm      VARCHAR(100) NOT NULL,
		PRIMARY KEY (user_id, model, object_id, perm)
	)`,
}
