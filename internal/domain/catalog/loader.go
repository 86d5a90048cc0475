package catalog

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
)

// The data files keep the original storefront's Spanish field names. They are
// translated into domain types here, at the boundary, so nothing downstream
// ever sees the file schema.

type productFile struct {
	ID          int             `json:"id"`
	Name        string          `json:"nombre"`
	Description string          `json:"descripcion"`
	Price       decimal.Decimal `json:"precio"`
	Stock       int             `json:"stock"`
	CategoryID  int             `json:"id_categoria"`
	Featured    bool            `json:"destacado"`
	Sizes       []string        `json:"tallas"`
	Colors      []string        `json:"colores"`
	Image       string          `json:"imagen"`
}

type categoryFile struct {
	ID          int    `json:"id"`
	Name        string `json:"nombre"`
	Description string `json:"descripcion"`
	Image       string `json:"imagen"`
}

type storeFile struct {
	Categories []categoryFile `json:"categorias"`
	Products   []productFile  `json:"productos"`
}

// Load reads a catalog document from path and builds the immutable Store.
// Files ending in .gz are decompressed transparently. Any error here is a
// startup configuration error: the caller must refuse to serve traffic.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog file")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip reader")
		}
		defer gz.Close()
		r = gz
	}

	return Parse(r)
}

// Parse decodes a catalog document from r. Split from Load so tests and the
// embedded default data can feed readers directly.
func Parse(r io.Reader) (*Store, error) {
	var doc storeFile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	if len(doc.Products) == 0 {
		return nil, errors.New("catalog contains no products")
	}

	categories := make([]Category, len(doc.Categories))
	for i, c := range doc.Categories {
		categories[i] = Category(c)
	}

	products := make([]Product, len(doc.Products))
	seen := make(map[int]struct{}, len(doc.Products))
	for i, p := range doc.Products {
		if _, dup := seen[p.ID]; dup {
			return nil, errors.Errorf("duplicate product id %d", p.ID)
		}
		seen[p.ID] = struct{}{}

		if p.Stock < 0 {
			return nil, errors.Errorf("product %d has negative stock", p.ID)
		}

		products[i] = Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Stock:       p.Stock,
			CategoryID:  p.CategoryID,
			Featured:    p.Featured,
			Sizes:       p.Sizes,
			Colors:      p.Colors,
			Image:       p.Image,
		}
	}

	return NewStore(categories, products), nil
}
