package fileprovider

import (
	"context"
	stderrors "errors"
	"io"

	"github.com/kbukum/mediafs/errors"
	"github.com/kbukum/mediafs/logger"
	"github.com/kbukum/mediafs/storage"
	"github.com/kbukum/mediafs/vpath"
)

// FileProvider is the read-only view of a file tree.
type FileProvider interface {
	GetDirectoryContents(ctx context.Context, subpath string) (*DirectoryListing, error)
	GetFileInfo(ctx context.Context, subpath string) (Entry, error)
	Watch(filter string) ChangeToken
}

// Provider resolves subpaths under a virtual root against a storage client.
type Provider struct {
	client     storage.Client
	root       string
	maxFolders int
	log        *logger.Logger
}

var _ FileProvider = (*Provider)(nil)

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithMaxFolders bounds root folder listings.
func WithMaxFolders(n int) ProviderOption {
	return func(p *Provider) { p.maxFolders = n }
}

// NewProvider creates a provider for client mounted at root.
func NewProvider(client storage.Client, root string, log *logger.Logger, opts ...ProviderOption) *Provider {
	p := &Provider{
		client:     client,
		root:       vpath.NormalizeRoot(root),
		maxFolders: storage.DefaultMaxFolders,
		log:        log.WithComponent("fileprovider"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Root is the normalized virtual root.
func (p *Provider) Root() string { return p.root }

// Key resolves a subpath to its storage key. Subpaths are made absolute
// first, so "media/x" under root "/media" is "x".
func (p *Provider) Key(subpath string) string {
	return vpath.ToStorageKey(p.root, vpath.EnsureLeadingSlash(vpath.NormalizeSeparators(subpath)))
}

// GetDirectoryContents lists the folder at subpath. A folder the service
// does not know yields NotFoundDirectory.
func (p *Provider) GetDirectoryContents(ctx context.Context, subpath string) (*DirectoryListing, error) {
	return p.ListKey(ctx, p.Key(subpath))
}

// ListKey lists the folder with the given storage key. The empty key is the
// root, whose folder listing is bounded by the folder limit.
func (p *Provider) ListKey(ctx context.Context, key string) (*DirectoryListing, error) {
	limit := 0
	if key == "" {
		limit = p.maxFolders
	}
	folders, err := p.client.ListFolders(ctx, key, limit)
	if err != nil {
		if storage.Reason(err) == storage.ReasonNotFound {
			return NotFoundDirectory, nil
		}
		return nil, storage.Translate("list_folders", key, err)
	}

	resources, err := p.client.ListResources(ctx, key)
	if err != nil {
		return nil, storage.Translate("list_resources", key, err)
	}

	p.log.Debug("directory listed", logger.Fields(
		logger.FieldStorageKey, key,
		"folders", len(folders),
		"files", len(resources),
	))
	return NewDirectoryListing(folders, resources, p.Opener), nil
}

// GetFileInfo returns the entry for the file at subpath, or a NotFoundFile
// when there is none. Nothing is downloaded.
func (p *Provider) GetFileInfo(ctx context.Context, subpath string) (Entry, error) {
	key := p.Key(subpath)
	if key == "" {
		return NotFoundFile(vpath.LeafName(subpath)), nil
	}

	res, err := p.client.GetResource(ctx, key)
	if err != nil {
		return nil, storage.Translate("get_resource", key, err)
	}
	if res == nil {
		return NotFoundFile(vpath.LeafName(subpath)), nil
	}
	return NewFileEntry(*res, p.Opener(key)), nil
}

// Watch is not supported for remote assets and returns NullChangeToken.
func (p *Provider) Watch(string) ChangeToken { return NullChangeToken }

// Opener returns the content opener for a storage key.
func (p *Provider) Opener(key string) Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		rc, err := p.client.Download(ctx, key)
		if err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return nil, errors.NotFound("file", key)
			}
			return nil, storage.Translate("download", key, err)
		}
		return rc, nil
	}
}
