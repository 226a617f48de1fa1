package appwrite

import (
	"context"
	"fmt"
	"net/url"

	"github.com/raisfeld-ori/appwrite-orm/pkg"
	"github.com/raisfeld-ori/appwrite-orm/store"
)

type wireAttribute struct {
	Key      string   `json:"key"`
	Type     string   `json:"type"`
	Format   string   `json:"format,omitempty"`
	Status   string   `json:"status,omitempty"`
	Required bool     `json:"required"`
	Array    bool     `json:"array,omitempty"`
	Size     int      `json:"size,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Elements []string `json:"elements,omitempty"`
	Default  any      `json:"default,omitempty"`
}

type wireCollection struct {
	ID          string          `json:"$id"`
	Name        string          `json:"name"`
	Permissions []string        `json:"$permissions"`
	Attributes  []wireAttribute `json:"attributes"`
}

// Appwrite reports floats as "double" on the wire and enums as strings
// with an "enum" format marker.
func fromWireAttribute(a wireAttribute) store.Attribute {
	attr := store.Attribute{
		Key:      a.Key,
		Required: a.Required,
		Array:    a.Array,
		Size:     a.Size,
		Min:      a.Min,
		Max:      a.Max,
		Elements: a.Elements,
		Default:  a.Default,
	}
	switch {
	case a.Format == "enum":
		attr.Type = store.AttributeTypeEnum
	case a.Type == "double":
		attr.Type = store.AttributeTypeFloat
	default:
		attr.Type = store.AttributeType(a.Type)
	}
	return attr
}

func fromWireCollection(res wireCollection) *store.Collection {
	return &store.Collection{
		ID:          res.ID,
		Name:        res.Name,
		Permissions: res.Permissions,
		Attributes:  pkg.Transform(res.Attributes, fromWireAttribute),
	}
}

func (c *Client) GetDatabase(ctx context.Context, db_id string) (*store.Database, error) {
	db := store.Database{}
	if err := c.call(ctx, "GET", "/databases/"+url.PathEscape(db_id), nil, &db); err != nil {
		return nil, err
	}
	return &db, nil
}

func (c *Client) CreateDatabase(ctx context.Context, db_id, name string) (*store.Database, error) {
	db := store.Database{}
	body := map[string]any{"databaseId": db_id, "name": name}
	if err := c.call(ctx, "POST", "/databases", body, &db); err != nil {
		return nil, err
	}
	return &db, nil
}

func (c *Client) collectionPath(db_id, col_id string) string {
	return fmt.Sprintf("/databases/%s/collections/%s", url.PathEscape(db_id), url.PathEscape(col_id))
}

func (c *Client) GetCollection(ctx context.Context, db_id, col_id string) (*store.Collection, error) {
	res := wireCollection{}
	if err := c.call(ctx, "GET", c.collectionPath(db_id, col_id), nil, &res); err != nil {
		return nil, err
	}
	return fromWireCollection(res), nil
}

func (c *Client) CreateCollection(ctx context.Context, db_id, col_id, name string, permissions []string) (*store.Collection, error) {
	res := wireCollection{}
	body := map[string]any{
		"collectionId": col_id,
		"name":         name,
		"permissions":  permissions,
	}
	if err := c.call(ctx, "POST", "/databases/"+url.PathEscape(db_id)+"/collections", body, &res); err != nil {
		return nil, err
	}
	return fromWireCollection(res), nil
}

func (c *Client) DeleteCollection(ctx context.Context, db_id, col_id string) error {
	return c.call(ctx, "DELETE", c.collectionPath(db_id, col_id), nil, nil)
}

// CreateAttribute dispatches to the per-type attribute endpoint.
func (c *Client) CreateAttribute(ctx context.Context, db_id, col_id string, attr store.Attribute) error {
	body := map[string]any{
		"key":      attr.Key,
		"required": attr.Required,
		"array":    attr.Array,
	}
	if attr.Default != nil {
		body["default"] = attr.Default
	}

	var kind string
	switch attr.Type {
	case store.AttributeTypeString:
		kind = "string"
		body["size"] = attr.Size
	case store.AttributeTypeInteger:
		kind = "integer"
		if attr.Min != nil {
			body["min"] = int64(*attr.Min)
		}
		if attr.Max != nil {
			body["max"] = int64(*attr.Max)
		}
	case store.AttributeTypeFloat:
		kind = "float"
		if attr.Min != nil {
			body["min"] = *attr.Min
		}
		if attr.Max != nil {
			body["max"] = *attr.Max
		}
	case store.AttributeTypeBoolean:
		kind = "boolean"
	case store.AttributeTypeDatetime:
		kind = "datetime"
	case store.AttributeTypeEnum:
		kind = "enum"
		body["elements"] = attr.Elements
	default:
		return fmt.Errorf("appwrite: unsupported attribute type %q", attr.Type)
	}

	return c.call(ctx, "POST", c.collectionPath(db_id, col_id)+"/attributes/"+kind, body, nil)
}

func (c *Client) ListIndexes(ctx context.Context, db_id, col_id string) ([]store.Index, error) {
	res := struct {
		Indexes []store.Index `json:"indexes"`
		Total   int           `json:"total"`
	}{}
	if err := c.call(ctx, "GET", c.collectionPath(db_id, col_id)+"/indexes", nil, &res); err != nil {
		return nil, err
	}
	return res.Indexes, nil
}

func (c *Client) CreateIndex(ctx context.Context, db_id, col_id string, index store.Index) error {
	body := map[string]any{
		"key":        index.Key,
		"type":       string(index.Type),
		"attributes": index.Attributes,
	}
	if len(index.Orders) > 0 {
		body["orders"] = index.Orders
	}
	return c.call(ctx, "POST", c.collectionPath(db_id, col_id)+"/indexes", body, nil)
}
