package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/safety-beacon/internal/config"
)

// Identity is the persistent device identity presented to the alert service.
type Identity struct {
	// DeviceID is the locally generated, globally unique device identifier.
	DeviceID string `json:"device_id"`
	// Hostname is the machine name recorded at generation time.
	Hostname string `json:"hostname,omitempty"`
	// Username is the system user recorded at generation time.
	Username string `json:"username,omitempty"`
	// CreatedAt is when the identity was generated.
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a copy of the identity.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}

	cloned := *i

	return &cloned
}

// Repository defines persistence operations for the device identity.
type Repository interface {
	Load(ctx context.Context) (*Identity, error)
	Save(ctx context.Context, identity *Identity) error
}

// ErrNotFound is returned when no identity has been generated yet.
var ErrNotFound = errors.New("identity not found")

// FileRepository persists the identity to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the identity file.
	path string
	// mu protects concurrent access to the identity file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the identity from disk.
func (r *FileRepository) Load(_ context.Context) (*Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read identity file: %w", err)
	}

	var identity Identity
	if err = json.Unmarshal(contents, &identity); err != nil {
		return nil, fmt.Errorf("decode identity file: %w", err)
	}

	if identity.DeviceID == "" {
		return nil, fmt.Errorf("decode identity file: %w", ErrNotFound)
	}

	return &identity, nil
}

// Save writes the identity to disk with restricted permissions.
func (r *FileRepository) Save(_ context.Context, identity *Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(identity, "", "  ")
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write identity file: %w", err)
	}

	return nil
}

// Generate creates a fresh identity with host and user metadata for audit
// trails. Missing metadata is tolerated; only the device ID is essential.
func Generate() *Identity {
	identity := &Identity{
		DeviceID:  uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	if hostname, err := os.Hostname(); err == nil {
		identity.Hostname = hostname
	}

	if currentUser, err := user.Current(); err == nil {
		identity.Username = currentUser.Username
	}

	return identity
}

// LoadOrCreate returns the stored identity, generating and persisting one on
// first run.
func LoadOrCreate(ctx context.Context, repository Repository) (*Identity, error) {
	stored, err := repository.Load(ctx)

	switch {
	case err == nil:
		return stored, nil
	case errors.Is(err, ErrNotFound):
		generated := Generate()
		if err = repository.Save(ctx, generated); err != nil {
			return nil, fmt.Errorf("persist identity: %w", err)
		}

		return generated, nil
	default:
		return nil, fmt.Errorf("load identity: %w", err)
	}
}
