// internal/vault/vault.go
//
// Vault client wrapper and secret-reference resolver.
//
// Context
// -------
//   - Wraps the HashiCorp Vault Go SDK with background token renewal,
//     KV-v2 reads, and per-key caching.
//   - Configuration values may name a secret instead of holding it:
//     `vault:<mount>/<path>#<key>`.  Resolve turns such a reference into
//     the secret and passes every other value through unchanged, so a
//     development config can keep a literal password.
//   - Header block, section underlines, Oxford commas, two spaces after
//     periods.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx, zap.S())                       // during boot.
//  2. pw,  err := vault.Resolve(ctx, cli, cfg.Database.Password) // config.
//  3. v,   err := cli.GetKV(ctx, path, key, ttl)                 // ad hoc.
//
// Build tags: none.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// RefPrefix marks a configuration value as a Vault reference.
const RefPrefix = "vault:"

// refTTL caches resolved references; config secrets are read at boot and
// on reload only.
const refTTL = 5 * time.Minute

// KV reads one key of a KV-v2 secret.  *Client implements it.
type KV interface {
	GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error)
}

//
// SECTION 1.  Public façade
//

// Client is safe for concurrent use.  Create once at startup and pass it
// to Resolve.  Zero value is invalid.
type Client struct {
	api *vault.Client
	log *zap.SugaredLogger

	cacheMu sync.RWMutex
	cache   map[string]cached // canonical path#key → value + expiry.
}

type cached struct {
	val string
	exp time.Time
}

// New constructs a Vault client and starts a background token-renewal loop.
//
// Environment expectations
// ------------------------
// • VAULT_ADDR   – scheme and host of the Vault server.
// • VAULT_TOKEN  – initial token (falls back to ~/.vault-token).
func New(ctx context.Context, log *zap.SugaredLogger) (*Client, error) {
	if log == nil {
		log = zap.S()
	}

	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}

	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	c := &Client{
		api:   apiCli,
		log:   log,
		cache: make(map[string]cached),
	}

	go c.renewLoop(ctx)

	return c, nil
}

// Resolve returns the secret named by a `vault:<path>#<key>` value, or
// value itself when it is not a reference.  kv may be nil when no
// reference is expected; a reference then fails.
func Resolve(ctx context.Context, kv KV, value string) (string, error) {
	path, key, ok, err := ParseRef(value)
	if err != nil || !ok {
		return value, err
	}
	if kv == nil {
		return "", fmt.Errorf("vault reference %q: no vault client", value)
	}
	return kv.GetKV(ctx, path, key, refTTL)
}

// ParseRef splits a reference into secret path and key.  ok is false for
// plain values; a reference without "#<key>" is an error.
func ParseRef(value string) (path, key string, ok bool, err error) {
	rest, isRef := strings.CutPrefix(value, RefPrefix)
	if !isRef {
		return "", "", false, nil
	}
	path, key, found := strings.Cut(rest, "#")
	if !found || path == "" || key == "" {
		return "", "", false, fmt.Errorf("vault reference %q: want vault:<path>#<key>", value)
	}
	return path, key, true, nil
}

// GetKV fetches a single key from a KV-v2 secret.  If ttl > 0 the result is
// cached for that duration.  Subsequent callers within the TTL receive the
// cached copy.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	if secretPath == "" || key == "" {
		return "", errors.New("secret path and key must be non-empty")
	}

	canonical := secretPath + "#" + key

	if ttl > 0 {
		c.cacheMu.RLock()
		if cv, ok := c.cache[canonical]; ok && time.Now().Before(cv.exp) {
			c.cacheMu.RUnlock()
			return cv.val, nil
		}
		c.cacheMu.RUnlock()
	}

	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}

	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s#%s is not a string", secretPath, key)
	}

	if ttl > 0 {
		c.cacheMu.Lock()
		c.cache[canonical] = cached{val: sval, exp: time.Now().Add(ttl)}
		c.cacheMu.Unlock()
	}

	return sval, nil
}

//
// SECTION 2.  Background token renewal
//

func (c *Client) renewLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Probe the current token.
		sec, err := c.api.Auth().Token().RenewSelf(0)
		if err != nil {
			c.log.Warnw("vault token renew-self failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}

		if sec == nil || !sec.Auth.Renewable {
			c.log.Infow("vault token not renewable, sleeping", "for", time.Hour)
			backoff(ctx, time.Hour)
			continue
		}

		renewer, err := c.api.NewRenewer(&vault.RenewerInput{
			Secret: sec,
			Grace:  15 * time.Second,
		})
		if err != nil {
			c.log.Warnw("vault renewer init failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}

		go renewer.Renew()

		for {
			select {
			case <-ctx.Done():
				renewer.Stop()
				return
			case err := <-renewer.DoneCh():
				renewer.Stop()
				if err != nil {
					c.log.Warnw("vault token renewal stopped", "err", err)
				}
				backoff(ctx, 15*time.Second)
				goto probe
			case ev := <-renewer.RenewCh():
				if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
					c.log.Debugw("vault token renewed", "ttl_s", ev.Secret.Auth.LeaseDuration)
				}
			}
		}
	probe:
	}
}

//
// SECTION 3.  Helpers
//

func splitMount(p string) (mount, rel string) {
	if p == "" {
		return "", ""
	}
	parts := strings.SplitN(p, "/", 2)
	mount = parts[0]
	if len(parts) == 2 {
		rel = parts[1]
	}
	return
}

func backoff(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
