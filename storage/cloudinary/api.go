package cloudinary

import (
	"strings"
	"time"

	"github.com/kbukum/mediafs/storage"
	"github.com/kbukum/mediafs/vpath"
)

type folderList struct {
	Folders    []apiFolder `json:"folders"`
	NextCursor string      `json:"next_cursor"`
}

type apiFolder struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type resourceList struct {
	Resources  []apiResource `json:"resources"`
	NextCursor string        `json:"next_cursor"`
}

type apiResource struct {
	PublicID     string    `json:"public_id"`
	Format       string    `json:"format"`
	ResourceType string    `json:"resource_type"`
	Bytes        int64     `json:"bytes"`
	CreatedAt    time.Time `json:"created_at"`
	SecureURL    string    `json:"secure_url"`
	URL          string    `json:"url"`
	Folder       *string   `json:"folder"`
	AssetFolder  *string   `json:"asset_folder"`
	DisplayName  string    `json:"display_name"`
	LastUpdated  *struct {
		UpdatedAt time.Time `json:"updated_at"`
	} `json:"last_updated"`
	// Existing is set on upload responses when overwrite=false found a
	// resource already stored under the public ID.
	Existing bool `json:"existing"`
}

type deleteResult struct {
	Deleted map[string]string `json:"deleted"`
	Partial bool              `json:"partial"`
}

type pingResult struct {
	Status string `json:"status"`
}

func (r apiResource) toResource() storage.Resource {
	folder := vpath.Parent(r.PublicID)
	switch {
	case r.Folder != nil:
		folder = strings.Trim(*r.Folder, "/")
	case r.AssetFolder != nil:
		folder = strings.Trim(*r.AssetFolder, "/")
	}

	name := r.DisplayName
	if name == "" {
		name = vpath.LeafName(r.PublicID)
	}

	u := r.SecureURL
	if u == "" {
		u = r.URL
	}

	res := storage.Resource{
		Key:          r.PublicID,
		Folder:       folder,
		DisplayName:  name,
		Format:       r.Format,
		ResourceType: r.ResourceType,
		Bytes:        r.Bytes,
		CreatedAt:    r.CreatedAt,
		URL:          u,
	}
	if r.LastUpdated != nil {
		res.UpdatedAt = r.LastUpdated.UpdatedAt
	}
	return res
}
