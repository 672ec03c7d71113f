package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/mediafs/cdn"
	"github.com/kbukum/mediafs/davfs"
	"github.com/kbukum/mediafs/errors"
	"github.com/kbukum/mediafs/fileprovider"
	"github.com/kbukum/mediafs/filesystem"
	"github.com/kbukum/mediafs/vpath"
)

// Media is what Mount exposes. CDN and WebDAV are optional.
type Media struct {
	FS     *filesystem.Adapter
	CDN    *cdn.Rewriter
	WebDAV *davfs.FS
}

// Mount registers the media routes:
//
//	GET|HEAD {virtual_path}/*file   asset bytes
//	/api/v1/...                     JSON file API
//	{webdav_prefix}/                WebDAV, when enabled
func (s *Server) Mount(m Media) {
	f := &files{fs: m.FS, cdn: m.CDN}

	serve := f.serveAsset
	if root := m.FS.Root(); root != "" {
		s.engine.GET(root+"/*file", serve)
		s.engine.HEAD(root+"/*file", serve)
	} else {
		s.engine.NoRoute(func(c *gin.Context) {
			if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
				serve(c)
				return
			}
			RespondWithError(c, errors.NotFound("route", c.Request.URL.Path))
		})
	}

	api := s.engine.Group("/api/v1")
	api.GET("/files", f.list)
	api.GET("/files/info", f.info)
	api.PUT("/files", f.put)
	api.DELETE("/files", f.delete)
	api.GET("/directories", f.directories)
	api.DELETE("/directories", f.deleteDirectory)
	api.GET("/url", f.url)

	if s.config.WebDAV && m.WebDAV != nil {
		prefix := strings.TrimSuffix(s.config.WebDAVPrefix, "/")
		s.Handle(prefix+"/", m.WebDAV.Handler(prefix))
	}
}

type files struct {
	fs  *filesystem.Adapter
	cdn *cdn.Rewriter
}

// entryJSON is the API form of a listing entry.
type entryJSON struct {
	Name         string     `json:"name"`
	Path         string     `json:"path"`
	IsDir        bool       `json:"is_dir"`
	Size         int64      `json:"size,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	Created      *time.Time `json:"created,omitempty"`
	URL          string     `json:"url,omitempty"`
}

func (f *files) toJSON(e fileprovider.Entry, dir string) entryJSON {
	out := entryJSON{Name: e.Name(), IsDir: e.IsDir()}
	switch v := e.(type) {
	case *fileprovider.DirectoryEntry:
		out.Path = v.Path()
	case *fileprovider.FileEntry:
		out.Path = v.Key()
		out.Size = v.Length()
		if t := v.LastModified(); !t.IsZero() {
			out.LastModified = &t
		}
		if t := v.Created(); !t.IsZero() {
			out.Created = &t
		}
		out.URL = f.fs.GetURL(v.Key())
	}
	if out.Path == "" {
		out.Path = strings.Trim(dir+"/"+out.Name, "/")
	}
	return out
}

// serveAsset streams the file below the virtual root through
// http.FileServer, which handles ranges, conditional requests and
// directory listings.
func (f *files) serveAsset(c *gin.Context) {
	fsys := fileprovider.FS(c.Request.Context(), f.fs.Provider())
	handler := http.StripPrefix(f.fs.Root(), http.FileServerFS(fsys))
	handler.ServeHTTP(c.Writer, c.Request)
}

func (f *files) list(c *gin.Context) {
	dir := c.Query("path")
	listing, err := f.fs.GetDirectoryContents(c.Request.Context(), dir)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if !listing.Exists() {
		RespondWithError(c, errors.NotFound("directory", dir))
		return
	}
	out := make([]entryJSON, 0, listing.Len())
	for e := range listing.All() {
		out = append(out, f.toJSON(e, f.fs.GetRelativePath(dir)))
	}
	RespondOK(c, out)
}

func (f *files) info(c *gin.Context) {
	p := c.Query("path")
	entry, err := f.fs.GetFileInfo(c.Request.Context(), p)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if !entry.Exists() {
		RespondWithError(c, errors.NotFound("file", p))
		return
	}
	RespondOK(c, f.toJSON(entry, ""))
}

func (f *files) put(c *gin.Context) {
	p := c.Query("path")
	overwrite := true
	if v := c.Query("overwrite"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			RespondWithError(c, errors.InvalidArgument("overwrite", "must be true or false"))
			return
		}
		overwrite = b
	}

	ctx := c.Request.Context()
	if err := f.fs.AddFile(ctx, p, c.Request.Body, overwrite); err != nil {
		RespondWithError(c, err)
		return
	}
	entry, err := f.fs.GetFileInfo(ctx, p)
	if err != nil || !entry.Exists() {
		key := f.fs.GetRelativePath(p)
		RespondCreated(c, entryJSON{Name: vpath.LeafName(key), Path: key, URL: f.fs.GetURL(key)})
		return
	}
	RespondCreated(c, f.toJSON(entry, ""))
}

func (f *files) delete(c *gin.Context) {
	if err := f.fs.DeleteFile(c.Request.Context(), c.Query("path")); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

func (f *files) directories(c *gin.Context) {
	dirs, err := f.fs.GetDirectories(c.Request.Context(), c.Query("path"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if dirs == nil {
		dirs = []string{}
	}
	RespondOK(c, dirs)
}

func (f *files) deleteDirectory(c *gin.Context) {
	if err := f.fs.DeleteDirectory(c.Request.Context(), c.Query("path"), true); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

// url reports the public URL of path and, when a CDN is configured, the
// rewritten one.
func (f *files) url(c *gin.Context) {
	p := c.Query("path")
	if strings.TrimSpace(p) == "" {
		RespondWithError(c, errors.InvalidArgument("path", "must not be blank"))
		return
	}
	public := f.fs.GetURL(f.fs.GetRelativePath(p))
	out := gin.H{"url": public}
	if f.cdn != nil && f.cdn.Enabled() {
		out["cdn_url"] = f.cdn.Rewrite(public)
	}
	RespondOK(c, out)
}
