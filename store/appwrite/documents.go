package appwrite

import (
	"context"
	"net/url"

	"github.com/raisfeld-ori/appwrite-orm/store"
)

func (c *Client) documentsPath(db_id, col_id string) string {
	return c.collectionPath(db_id, col_id) + "/documents"
}

func (c *Client) GetDocument(ctx context.Context, db_id, col_id, doc_id string) (store.Document, error) {
	doc := store.Document{}
	err := c.call(ctx, "GET", c.documentsPath(db_id, col_id)+"/"+url.PathEscape(doc_id), nil, &doc)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) ListDocuments(ctx context.Context, db_id, col_id string, queries []string) (*store.DocumentList, error) {
	path := c.documentsPath(db_id, col_id)
	if len(queries) > 0 {
		values := url.Values{}
		for _, q := range queries {
			values.Add("queries[]", q)
		}
		path += "?" + values.Encode()
	}
	list := store.DocumentList{}
	if err := c.call(ctx, "GET", path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) CreateDocument(ctx context.Context, db_id, col_id, doc_id string, data map[string]any) (store.Document, error) {
	body := map[string]any{"documentId": doc_id, "data": data}
	doc := store.Document{}
	if err := c.call(ctx, "POST", c.documentsPath(db_id, col_id), body, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) UpdateDocument(ctx context.Context, db_id, col_id, doc_id string, data map[string]any) (store.Document, error) {
	body := map[string]any{"data": data}
	doc := store.Document{}
	err := c.call(ctx, "PATCH", c.documentsPath(db_id, col_id)+"/"+url.PathEscape(doc_id), body, &doc)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, db_id, col_id, doc_id string) error {
	return c.call(ctx, "DELETE", c.documentsPath(db_id, col_id)+"/"+url.PathEscape(doc_id), nil, nil)
}
