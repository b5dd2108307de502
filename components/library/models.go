package library

import "github.com/yanizio/ajaxviews/internal/query"

// Models served by the library component.
var (
	Author = &query.Model{
		Name:  "author",
		Table: "author",
		Fields: []query.Field{
			{Name: "name"},
			{Name: "born", Type: query.TypeDate},
		},
		Ordering: []string{"name"},
		URLName:  "author_list",
	}

	Book = &query.Model{
		Name:  "book",
		Table: "book",
		Fields: []query.Field{
			{Name: "title"},
			{Name: "pages", Type: query.TypeInt},
			{Name: "status"},
			{Name: "published", Type: query.TypeDate},
			{Name: "author", Type: query.TypeFK, Related: "author"},
			{Name: "cover", Type: query.TypeFile},
		},
		Ordering:   []string{"-published", "title"},
		SoftDelete: "deleted_at",
		URLName:    "book_detail",
	}
)

// statusLabels maps stored book states to their display names.
var statusLabels = map[string]string{
	"draft":     "Draft",
	"published": "Published",
	"archived":  "Archived",
}

func init() {
	query.Register(Author)
	query.Register(Book)
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS author (
		id   BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		born DATE NULL
	)`,
	`CREATE TABLE IF NOT EXISTS book (
		id         BIGINT AUTO_INCREMENT PRIMARY KEY,
		title      VARCHAR(200) NOT NULL,
		pages      INT NULL,
		status     VARCHAR(20) NOT NULL DEFAULT 'draft',
		published  DATE NULL,
		author_id  BIGINT NULL,
		cover      VARCHAR(255) NULL,
		deleted_at DATETIME NULL,
		CONSTRAINT fk_book_author FOREIGN KEY (author_id) REFERENCES author (id)
	)`,
}
