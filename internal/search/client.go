// Package search keeps an Elasticsearch index of books and queries it.
// The database stays authoritative: searches return ids that callers load from storage.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

type Config struct {
	URL      string
	User     string
	Password string
	Index    string
}

type Client struct {
	es    *elasticsearch.Client
	index string
}

// NewClient connects and checks the cluster answers before returning.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	l := logging.FromContext(ctx).With("component", "search")
	l.Info("es_connecting", "url", cfg.URL, "index", cfg.Index)

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create es client: %w", err)
	}

	res, err := es.Info(es.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("es info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("es info: %s: %s", res.Status(), body)
	}

	l.Info("es_connected")
	return &Client{es: es, index: cfg.Index}, nil
}

type bookDoc struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	ISBN        string `json:"isbn,omitempty"`
	CategoryID  uint   `json:"category_id"`
	Price       int64  `json:"price"`
	Language    string `json:"language,omitempty"`
	IsActive    bool   `json:"is_active"`
}

func docFromBook(b models.Book) bookDoc {
	d := bookDoc{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Description: b.Description,
		CategoryID:  b.CategoryID,
		Price:       b.Price,
		Language:    b.Language,
		IsActive:    b.IsActive,
	}
	if b.ISBN != nil {
		d.ISBN = *b.ISBN
	}
	return d
}

func (c *Client) IndexBook(ctx context.Context, b models.Book) error {
	body, err := json.Marshal(docFromBook(b))
	if err != nil {
		return err
	}
	res, err := c.es.Index(c.index, bytes.NewReader(body),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(strconv.FormatUint(uint64(b.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("es index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("es index: %s", res.Status())
	}
	return nil
}

// DeleteBook treats a missing document as success.
func (c *Client) DeleteBook(ctx context.Context, id uint) error {
	res, err := c.es.Delete(c.index, strconv.FormatUint(uint64(id), 10), c.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("es delete: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("es delete: %s", res.Status())
	}
	return nil
}

func buildQuery(f domain.BookFilter, from, size int) map[string]any {
	var must []any
	if f.Query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":     f.Query,
				"fields":    []string{"title^2", "author", "description", "isbn"},
				"fuzziness": "AUTO",
			},
		})
	} else {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	}
	if f.Author != "" {
		must = append(must, map[string]any{"match": map[string]any{"author": f.Author}})
	}

	filter := []any{map[string]any{"term": map[string]any{"is_active": true}}}
	if f.CategoryID != nil {
		filter = append(filter, map[string]any{"term": map[string]any{"category_id": *f.CategoryID}})
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		rng := map[string]any{}
		if f.MinPrice != nil {
			rng["gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			rng["lte"] = *f.MaxPrice
		}
		filter = append(filter, map[string]any{"range": map[string]any{"price": rng}})
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"must": must, "filter": filter},
		},
		"from":    from,
		"size":    size,
		"_source": []string{"id"},
	}
}

// Search returns matching book ids in relevance order and the total hit count.
func (c *Client) Search(ctx context.Context, f domain.BookFilter, from, size int) (int64, []uint, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildQuery(f, from, size)); err != nil {
		return 0, nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("es search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return 0, nil, fmt.Errorf("es search: %s: %s", res.Status(), strings.TrimSpace(string(body)))
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source struct {
					ID uint `json:"id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode es response: %w", err)
	}

	ids := make([]uint, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		ids = append(ids, h.Source.ID)
	}
	return r.Hits.Total.Value, ids, nil
}
