package chunkcache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/c360/reductionist/request"
	"github.com/c360/reductionist/storage"
)

// AuthToken is the template token that makes the cache per-identity.
const AuthToken = "%auth"

// Key substitutes the configured template tokens for the request. The '%'
// characters of substituted values are sanitized so a leftover token is
// always detectable, and credentials appear only in the literal key, never
// on disk.
func (c *Cache) Key(desc *request.Descriptor, creds storage.Credentials) string {
	source := desc.Endpoint
	if source == "" {
		source = desc.URL
	}
	auth := "anon"
	if !creds.Anonymous() {
		auth = creds.AccessKey + ":" + creds.Secret
	}

	key := c.cfg.KeyTemplate
	key = replaceToken(key, "%source", source)
	key = replaceToken(key, "%bucket", desc.Bucket)
	key = replaceToken(key, "%object", desc.Object)
	key = replaceToken(key, "%offset", fmt.Sprintf("%d", desc.Offset))
	key = replaceToken(key, "%size", fmt.Sprintf("%d", desc.Size))
	key = replaceToken(key, "%dtype", string(desc.DType))
	key = replaceToken(key, "%byte_order", string(desc.ByteOrder))
	key = replaceToken(key, "%compression", desc.Compression)
	key = replaceToken(key, AuthToken, auth)
	return key
}

func replaceToken(key, token, value string) string {
	return strings.ReplaceAll(key, token, strings.ReplaceAll(value, "%", "_"))
}

// digest returns the fixed-length on-disk name for a literal key.
func digest(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// PerIdentity reports whether the key template scopes entries to the
// requesting identity.
func (c *Cache) PerIdentity() bool {
	return strings.Contains(c.cfg.KeyTemplate, AuthToken)
}

// RequiresAuthProbe reports whether a hit must be authorized against the
// object store before it is served: entries are shared across identities
// and the bypass flag is off.
func (c *Cache) RequiresAuthProbe() bool {
	return !c.PerIdentity() && !c.cfg.BypassAuth
}
