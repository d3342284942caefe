package auth

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"

	quillerrors "thoreinstein.com/quill/pkg/errors"
)

// KeyringService is the keychain service name for quill. Each suggestion
// service host gets its own account under it.
const KeyringService = "quill-suggestions"

// TokenCache manages OAuth token storage for one suggestion service.
type TokenCache interface {
	Get() (*oauth2.Token, error)
	Set(token *oauth2.Token) error
	Clear() error
}

// storedToken is the persisted form of an oauth2.Token.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

func (s storedToken) token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
		Expiry:       s.Expiry,
	}
}

func newStoredToken(t *oauth2.Token) storedToken {
	return storedToken{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
		SavedAt:      time.Now().UTC(),
	}
}

// ServiceKey names the credential slot for baseURL: the lowercased host, with
// the port when one is given. Tokens issued by one deployment are never sent
// to another.
func ServiceKey(baseURL string) string {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Host == "" {
		return "default"
	}
	return strings.ToLower(u.Host)
}

// NewTokenCache returns the cache for the service at baseURL. The system
// keychain is used when it answers a lookup; otherwise tokens live in the
// JSON file at fallbackPath, which holds one entry per service.
func NewTokenCache(baseURL, fallbackPath string) TokenCache {
	key := ServiceKey(baseURL)

	_, err := keyring.Get(KeyringService, key)
	if err == nil || err == keyring.ErrNotFound {
		return &KeychainTokenCache{account: key}
	}
	return NewFileTokenCache(fallbackPath, key)
}

// KeychainTokenCache stores the token in the OS credential store.
type KeychainTokenCache struct {
	account string
}

// Get returns the cached token, or nil when none is stored.
func (k *KeychainTokenCache) Get() (*oauth2.Token, error) {
	data, err := keyring.Get(KeyringService, k.account)
	if err == keyring.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, quillerrors.NewAuthErrorWithCause("TokenCache.Get", "failed to read from keychain", err)
	}

	var stored storedToken
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, quillerrors.NewAuthErrorWithCause("TokenCache.Get", "failed to parse cached token", err)
	}
	return stored.token(), nil
}

// Set stores token for this service.
func (k *KeychainTokenCache) Set(token *oauth2.Token) error {
	data, err := json.Marshal(newStoredToken(token))
	if err != nil {
		return quillerrors.NewAuthErrorWithCause("TokenCache.Set", "failed to serialize token", err)
	}
	if err := keyring.Set(KeyringService, k.account, string(data)); err != nil {
		return quillerrors.NewAuthErrorWithCause("TokenCache.Set", "failed to save to keychain", err)
	}
	return nil
}

// Clear removes this service's token. Clearing an empty slot is not an error.
func (k *KeychainTokenCache) Clear() error {
	err := keyring.Delete(KeyringService, k.account)
	if err != nil && err != keyring.ErrNotFound {
		return quillerrors.NewAuthErrorWithCause("TokenCache.Clear", "failed to clear keychain", err)
	}
	return nil
}

// tokenFile is the on-disk layout of the file cache.
type tokenFile struct {
	Services map[string]storedToken `json:"services"`
}

// FileTokenCache keeps one service's token in a shared 0600 JSON file, for
// hosts without a usable keychain.
type FileTokenCache struct {
	path    string
	service string
}

// NewFileTokenCache returns the file cache entry for service in the file at path.
func NewFileTokenCache(path, service string) *FileTokenCache {
	return &FileTokenCache{path: path, service: service}
}

func (f *FileTokenCache) load() (tokenFile, error) {
	doc := tokenFile{Services: map[string]storedToken{}}

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, quillerrors.NewAuthErrorWithCause("TokenCache", "failed to read token file", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, quillerrors.NewAuthErrorWithCause("TokenCache", "failed to parse token file", err)
	}
	if doc.Services == nil {
		doc.Services = map[string]storedToken{}
	}
	return doc, nil
}

func (f *FileTokenCache) save(doc tokenFile) error {
	if len(doc.Services) == 0 {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return quillerrors.NewAuthErrorWithCause("TokenCache", "failed to remove token file", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return quillerrors.NewAuthErrorWithCause("TokenCache", "failed to create config directory", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return quillerrors.NewAuthErrorWithCause("TokenCache", "failed to serialize token file", err)
	}
	// Owner read/write only
	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return quillerrors.NewAuthErrorWithCause("TokenCache", "failed to write token file", err)
	}
	return nil
}

// Get returns this service's token, or nil when none is stored.
func (f *FileTokenCache) Get() (*oauth2.Token, error) {
	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	stored, ok := doc.Services[f.service]
	if !ok {
		return nil, nil
	}
	return stored.token(), nil
}

// Set stores token for this service, keeping entries for other services.
func (f *FileTokenCache) Set(token *oauth2.Token) error {
	doc, err := f.load()
	if err != nil {
		return err
	}
	doc.Services[f.service] = newStoredToken(token)
	return f.save(doc)
}

// Clear drops this service's entry. The file is removed once it holds none.
func (f *FileTokenCache) Clear() error {
	doc, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Services[f.service]; !ok {
		return nil
	}
	delete(doc.Services, f.service)
	return f.save(doc)
}
