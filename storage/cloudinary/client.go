package cloudinary

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/mediafs/httpclient"
	"github.com/kbukum/mediafs/logger"
	"github.com/kbukum/mediafs/resilience"
	"github.com/kbukum/mediafs/storage"
	"github.com/kbukum/mediafs/vpath"
)

// DefaultEndpoint is the Cloudinary API host.
const DefaultEndpoint = "https://api.cloudinary.com"

// pageSize is the largest max_results the Admin API accepts.
const pageSize = 500

// deleteBatch is the most public IDs one delete request may name.
const deleteBatch = 100

func init() {
	storage.RegisterFactory(storage.ProviderCloudinary, func(cfg storage.Config, log *logger.Logger) (storage.Client, error) {
		return New(cfg, log)
	})
}

// Client talks to one Cloudinary cloud.
type Client struct {
	api          *httpclient.Adapter
	cloud        string
	apiKey       string
	apiSecret    string
	resourceType string
	dynamic      bool
	log          *logger.Logger
	now          func() time.Time
	httpClient   *http.Client
}

var (
	_ storage.Client = (*Client)(nil)
	_ storage.Pinger = (*Client)(nil)
	_ storage.Closer = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithClock sets the clock used for upload timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for cfg.Cloud. cfg.Endpoint, when set, replaces
// DefaultEndpoint.
func New(cfg storage.Config, log *logger.Logger, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if cfg.Cloud == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary: cloud, api key and api secret are required")
	}

	c := &Client{
		cloud:        cfg.Cloud,
		apiKey:       cfg.APIKey,
		apiSecret:    cfg.APISecret,
		resourceType: cfg.ResourceType,
		dynamic:      cfg.FolderMode != storage.FolderModeFixed,
		log:          log.WithComponent("storage.cloudinary"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	hcfg := httpclient.Config{
		Name:    "cloudinary",
		BaseURL: strings.TrimRight(endpoint, "/") + "/v1_1/" + url.PathEscape(cfg.Cloud),
		Timeout: cfg.Timeout,
		Auth:    httpclient.BasicAuth(cfg.APIKey, cfg.APISecret),
		Headers: map[string]string{"Accept": "application/json"},
		CircuitBreaker: &resilience.CircuitBreakerConfig{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			OnStateChange: func(name string, from, to resilience.State) {
				c.log.Warn("circuit state changed", logger.Fields("breaker", name, "from", from.String(), "to", to.String()))
			},
		},
	}
	if cfg.Retries > 0 {
		hcfg.Retry = httpclient.DefaultRetryConfig(cfg.Retries + 1)
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		hcfg.RateLimiter = &resilience.RateLimiterConfig{Rate: cfg.RequestsPerSecond, Burst: burst}
	}

	var hopts []httpclient.Option
	if c.httpClient != nil {
		hopts = append(hopts, httpclient.WithHTTPClient(c.httpClient))
	}
	api, err := httpclient.New(hcfg, hopts...)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	c.api = api
	return c, nil
}

// ListFolders returns the subfolders of parent. The Admin API has separate
// endpoints for root folders and subfolders.
func (c *Client) ListFolders(ctx context.Context, parent string, maxResults int) ([]storage.Folder, error) {
	p := "/folders"
	if parent != "" {
		p += "/" + escapePath(parent)
	}

	var out []storage.Folder
	cursor := ""
	for {
		limit := pageSize
		if maxResults > 0 && maxResults-len(out) < limit {
			limit = maxResults - len(out)
		}
		opts := []httpclient.RequestOption{httpclient.WithQueryParam("max_results", strconv.Itoa(limit))}
		if cursor != "" {
			opts = append(opts, httpclient.WithQueryParam("next_cursor", cursor))
		}

		resp, err := httpclient.Get[folderList](c.api, ctx, p, opts...)
		if err != nil {
			return nil, err
		}
		for _, f := range resp.Data.Folders {
			out = append(out, storage.Folder{Name: f.Name, Path: strings.Trim(f.Path, "/")})
		}

		cursor = resp.Data.NextCursor
		if cursor == "" || (maxResults > 0 && len(out) >= maxResults) {
			return out, nil
		}
	}
}

// ListResources returns the resources filed directly in folder. Dynamic
// folders are listed by asset folder; fixed folders by public ID prefix.
// The root is the prefix-less listing in both modes.
func (c *Client) ListResources(ctx context.Context, folder string) ([]storage.Resource, error) {
	if c.dynamic && folder != "" {
		return c.listAssetFolder(ctx, folder)
	}
	prefix := ""
	if folder != "" {
		prefix = folder + "/"
	}
	all, err := c.listResources(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, r := range all {
		if r.Folder == folder {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListAllResources returns every resource of the configured type.
func (c *Client) ListAllResources(ctx context.Context) ([]storage.Resource, error) {
	return c.listResources(ctx, "")
}

func (c *Client) listResources(ctx context.Context, prefix string) ([]storage.Resource, error) {
	p := "/resources/" + c.resourceType + "/upload"

	var out []storage.Resource
	cursor := ""
	for {
		opts := []httpclient.RequestOption{httpclient.WithQueryParam("max_results", strconv.Itoa(pageSize))}
		if prefix != "" {
			opts = append(opts, httpclient.WithQueryParam("prefix", prefix))
		}
		if cursor != "" {
			opts = append(opts, httpclient.WithQueryParam("next_cursor", cursor))
		}

		resp, err := httpclient.Get[resourceList](c.api, ctx, p, opts...)
		if err != nil {
			return nil, err
		}
		for _, r := range resp.Data.Resources {
			out = append(out, r.toResource())
		}

		cursor = resp.Data.NextCursor
		if cursor == "" {
			return out, nil
		}
	}
}

// listAssetFolder lists a dynamic folder. The endpoint spans resource
// types, so only the configured type is kept.
func (c *Client) listAssetFolder(ctx context.Context, folder string) ([]storage.Resource, error) {
	var out []storage.Resource
	cursor := ""
	for {
		opts := []httpclient.RequestOption{
			httpclient.WithQueryParam("asset_folder", folder),
			httpclient.WithQueryParam("max_results", strconv.Itoa(pageSize)),
		}
		if cursor != "" {
			opts = append(opts, httpclient.WithQueryParam("next_cursor", cursor))
		}

		resp, err := httpclient.Get[resourceList](c.api, ctx, "/resources/by_asset_folder", opts...)
		if err != nil {
			return nil, err
		}
		for _, r := range resp.Data.Resources {
			if r.ResourceType != "" && r.ResourceType != c.resourceType {
				continue
			}
			out = append(out, r.toResource())
		}

		cursor = resp.Data.NextCursor
		if cursor == "" {
			return out, nil
		}
	}
}

// GetResource fetches the resource details. A 404 means there is none.
func (c *Client) GetResource(ctx context.Context, key string) (*storage.Resource, error) {
	resp, err := httpclient.Get[apiResource](c.api, ctx, c.resourcePath(key))
	if err != nil {
		if httpclient.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	res := resp.Data.toResource()
	return &res, nil
}

// Upload performs a signed upload with the key as public ID. In dynamic
// mode the key's parent is sent as the asset folder and its leaf as the
// display name. With overwrite false Cloudinary keeps the stored asset and
// flags the response as existing.
func (c *Client) Upload(ctx context.Context, key string, content io.Reader, overwrite bool) (*storage.Resource, error) {
	params := map[string]string{
		"public_id": key,
		"overwrite": strconv.FormatBool(overwrite),
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if overwrite {
		params["invalidate"] = "true"
	}
	if c.dynamic {
		if folder := vpath.Parent(key); folder != "" {
			params["asset_folder"] = folder
		}
		params["display_name"] = vpath.LeafName(key)
	}
	params["signature"] = sign(params, c.apiSecret)
	params["api_key"] = c.apiKey

	body := &httpclient.MultipartBody{
		Fields: params,
		Files: []httpclient.FileField{{
			FieldName: "file",
			FileName:  vpath.LeafName(key),
			Reader:    content,
		}},
	}

	resp, err := httpclient.Post[apiResource](c.api, ctx, "/"+c.resourceType+"/upload", body,
		httpclient.WithRequestAuth(httpclient.NoAuth()))
	if err != nil {
		return nil, err
	}
	if resp.Data.Existing && !overwrite {
		return nil, storage.ErrAlreadyExists
	}
	res := resp.Data.toResource()
	return &res, nil
}

// Download streams the asset from its delivery URL.
func (c *Client) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	res, err := c.GetResource(ctx, key)
	if err != nil {
		return nil, err
	}
	if res == nil || res.URL == "" {
		return nil, storage.ErrNotFound
	}

	resp, err := c.api.DoStream(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   res.URL,
		Auth:   httpclient.NoAuth(),
	})
	if err != nil {
		if httpclient.IsNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return resp.Body, nil
}

// DeleteResource destroys one asset. "not_found" in the result is fine.
func (c *Client) DeleteResource(ctx context.Context, key string) error {
	_, err := httpclient.Delete[deleteResult](c.api, ctx, "/resources/"+c.resourceType+"/upload",
		httpclient.WithQueryParam("public_ids[]", key))
	return err
}

// DeleteFolder deletes every asset in the folder and its subfolders, then
// the folder itself. A folder that does not exist is already deleted.
func (c *Client) DeleteFolder(ctx context.Context, folder string) error {
	if c.dynamic {
		if err := c.deleteAssetFolder(ctx, folder); err != nil {
			return err
		}
	} else if err := c.deletePrefix(ctx, folder+"/"); err != nil {
		return err
	}

	_, err := httpclient.Delete[map[string]any](c.api, ctx, "/folders/"+escapePath(folder))
	if err != nil && !httpclient.IsNotFound(err) {
		return err
	}
	return nil
}

// deletePrefix bulk deletes by public ID prefix. Bulk deletes are capped
// server-side and report partial until the prefix is drained.
func (c *Client) deletePrefix(ctx context.Context, prefix string) error {
	const maxRounds = 100

	for range maxRounds {
		resp, err := httpclient.Delete[deleteResult](c.api, ctx, "/resources/"+c.resourceType+"/upload",
			httpclient.WithQueryParam("prefix", prefix))
		if err != nil {
			return err
		}
		if !resp.Data.Partial {
			return nil
		}
	}
	return nil
}

// deleteAssetFolder empties a dynamic folder depth first. Public IDs need
// not share the folder's path, so assets are deleted by ID.
func (c *Client) deleteAssetFolder(ctx context.Context, folder string) error {
	subs, err := c.ListFolders(ctx, folder, 0)
	if err != nil {
		if httpclient.IsNotFound(err) {
			return nil
		}
		return err
	}
	for _, sub := range subs {
		if err := c.deleteAssetFolder(ctx, sub.Path); err != nil {
			return err
		}
		if _, err := httpclient.Delete[map[string]any](c.api, ctx, "/folders/"+escapePath(sub.Path)); err != nil && !httpclient.IsNotFound(err) {
			return err
		}
	}

	resources, err := c.listAssetFolder(ctx, folder)
	if err != nil {
		return err
	}
	for batch := range slices.Chunk(resources, deleteBatch) {
		opts := make([]httpclient.RequestOption, 0, len(batch))
		for _, r := range batch {
			opts = append(opts, httpclient.WithQueryParam("public_ids[]", r.Key))
		}
		if _, err := httpclient.Delete[deleteResult](c.api, ctx, "/resources/"+c.resourceType+"/upload", opts...); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks reachability and credentials.
func (c *Client) Ping(ctx context.Context) error {
	if !c.api.Available() {
		return resilience.ErrCircuitOpen
	}
	resp, err := httpclient.Get[pingResult](c.api, ctx, "/ping")
	if err != nil {
		return err
	}
	if resp.Data.Status != "ok" {
		return fmt.Errorf("cloudinary: ping status %q", resp.Data.Status)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.api.Close()
}

func (c *Client) resourcePath(key string) string {
	return "/resources/" + c.resourceType + "/upload/" + escapePath(key)
}

func escapePath(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
