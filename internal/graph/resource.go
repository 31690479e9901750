package graph

import (
	"path"
	"strings"
	"time"

	"github.com/Project-Sylos/Mirage/internal/types"
)

// WebHost is the host used in generated webUrl values
const WebHost = "https://mirage.localhost"

// Resource is the Graph-style JSON shape of an item. Filters evaluate
// against this shape, so "file/mimeType" and "fields/Status" are valid paths.
type Resource struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name,omitempty"`
	DisplayName          string          `json:"displayName,omitempty"`
	Size                 *int64          `json:"size,omitempty"`
	CreatedDateTime      time.Time       `json:"createdDateTime"`
	LastModifiedDateTime time.Time       `json:"lastModifiedDateTime"`
	WebURL               string          `json:"webUrl,omitempty"`
	DriveType            string          `json:"driveType,omitempty"`
	ParentReference      *ItemReference  `json:"parentReference,omitempty"`
	File                 *FileFacet      `json:"file,omitempty"`
	Folder               *FolderFacet    `json:"folder,omitempty"`
	Root                 *struct{}       `json:"root,omitempty"`
	List                 *ListFacet      `json:"list,omitempty"`
	Fields               map[string]any  `json:"fields,omitempty"`
	ContentType          *ContentTypeRef `json:"contentType,omitempty"`
}

// ItemReference points at an item's container
type ItemReference struct {
	DriveID string `json:"driveId,omitempty"`
	ID      string `json:"id,omitempty"`
	Path    string `json:"path,omitempty"`
	SiteID  string `json:"siteId,omitempty"`
}

type FileFacet struct {
	MimeType string  `json:"mimeType"`
	Hashes   *Hashes `json:"hashes,omitempty"`
}

type Hashes struct {
	SHA256Hash string `json:"sha256Hash"`
}

type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

type ListFacet struct {
	Template string `json:"template"`
}

type ContentTypeRef struct {
	Name string `json:"name"`
}

// parentPath renders the Graph parentReference path, e.g. "/drive/root:/docs"
func parentPath(itemPath string) string {
	dir := path.Dir(itemPath)
	if dir == "/" || dir == "." {
		return "/drive/root:"
	}
	return "/drive/root:" + dir
}

func webURL(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			escaped = append(escaped, p)
		}
	}
	return WebHost + "/" + strings.Join(escaped, "/")
}

// Represent renders item. childCount is only used for containers.
func Represent(item *types.Item, childCount int) *Resource {
	r := &Resource{
		ID:                   item.ID,
		Name:                 item.Name,
		CreatedDateTime:      item.CreatedAt.UTC(),
		LastModifiedDateTime: item.LastModified.UTC(),
	}

	switch item.Type {
	case types.ItemTypeSite:
		r.DisplayName = item.Name
		r.WebURL = webURL("sites", item.Name)

	case types.ItemTypeDrive:
		r.DriveType = "documentLibrary"
		r.WebURL = webURL("sites", item.SiteID, item.Name)
		r.Folder = &FolderFacet{ChildCount: childCount}
		r.Root = &struct{}{}
		r.ParentReference = &ItemReference{SiteID: item.SiteID}

	case types.ItemTypeFolder:
		r.Size = &item.Size
		r.WebURL = webURL("drives", item.DriveID, item.Path)
		r.Folder = &FolderFacet{ChildCount: childCount}
		r.ParentReference = &ItemReference{
			DriveID: item.DriveID,
			ID:      item.ParentID,
			Path:    parentPath(item.Path),
			SiteID:  item.SiteID,
		}

	case types.ItemTypeFile:
		r.Size = &item.Size
		r.WebURL = webURL("drives", item.DriveID, item.Path)
		r.File = &FileFacet{MimeType: item.MimeType}
		if item.Checksum != "" {
			r.File.Hashes = &Hashes{SHA256Hash: item.Checksum}
		}
		r.ParentReference = &ItemReference{
			DriveID: item.DriveID,
			ID:      item.ParentID,
			Path:    parentPath(item.Path),
			SiteID:  item.SiteID,
		}

	case types.ItemTypeList:
		r.DisplayName = item.Name
		r.WebURL = webURL("sites", item.SiteID, "lists", item.Name)
		template, _ := item.Fields["template"].(string)
		if template == "" {
			template = "genericList"
		}
		r.List = &ListFacet{Template: template}
		r.ParentReference = &ItemReference{SiteID: item.SiteID}

	case types.ItemTypeListItem:
		r.Name = ""
		r.WebURL = webURL("sites", item.SiteID, "lists", item.ListID, "items", item.ID)
		r.Fields = item.Fields
		if r.Fields == nil {
			r.Fields = map[string]any{}
		}
		r.ContentType = &ContentTypeRef{Name: "Item"}
		r.ParentReference = &ItemReference{ID: item.ListID, SiteID: item.SiteID}
	}

	return r
}
