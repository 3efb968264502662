package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/presslane/newswire/internal/apierror"
	"github.com/presslane/newswire/model"
)

func (d Datasource) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	filterJSON, err := marshalContentFilterRef(p.ContentFilter)
	if err != nil {
		return model.Product{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal content filter reference", err)
	}

	p.ProductID = GenerateUUIDWithSuffix("prd")
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO products (product_id, name, codes, geo_restrictions, content_filter, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ProductID, p.Name, p.Codes, p.GeoRestrictions, filterJSON, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return model.Product{}, apierror.NewAPIError(apierror.ErrConflict, "Product with this ID already exists", err)
		}
		return model.Product{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create product", err)
	}
	return p, nil
}

func (d Datasource) GetProductByID(ctx context.Context, id string) (*model.Product, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT product_id, name, codes, geo_restrictions, content_filter, created_at, updated_at
		FROM products
		WHERE product_id = $1
	`, id)

	p, err := scanProduct(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Product not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve product", err)
	}
	return &p, nil
}

func (d Datasource) GetProductsByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT product_id, name, codes, geo_restrictions, content_filter, created_at, updated_at
		FROM products
		WHERE product_id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve products", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (d Datasource) GetAllProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT product_id, name, codes, geo_restrictions, content_filter, created_at, updated_at
		FROM products
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve products", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (d Datasource) UpdateProduct(ctx context.Context, p *model.Product) error {
	filterJSON, err := marshalContentFilterRef(p.ContentFilter)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal content filter reference", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE products
		SET name = $2, codes = $3, geo_restrictions = $4, content_filter = $5, updated_at = NOW()
		WHERE product_id = $1
	`, p.ProductID, p.Name, p.Codes, p.GeoRestrictions, filterJSON)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update product", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Product not found", sql.ErrNoRows)
	}
	return nil
}

func (d Datasource) DeleteProduct(ctx context.Context, id string) error {
	var attached int
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM subscriber_products WHERE product_id = $1
	`, id).Scan(&attached)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check product usage", err)
	}
	if attached > 0 {
		return apierror.NewAPIError(apierror.ErrConflict, "Product is attached to subscribers", nil)
	}

	result, err := d.Conn.ExecContext(ctx, `DELETE FROM products WHERE product_id = $1`, id)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete product", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read delete result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Product not found", sql.ErrNoRows)
	}
	return nil
}

func marshalContentFilterRef(ref *model.ContentFilterRef) ([]byte, error) {
	if ref == nil {
		return nil, nil
	}
	return json.Marshal(ref)
}

func scanProduct(row interface {
	Scan(dest ...interface{}) error
}) (model.Product, error) {
	var p model.Product
	var codes, geo sql.NullString
	var filterJSON []byte

	err := row.Scan(&p.ProductID, &p.Name, &codes, &geo, &filterJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.Codes = codes.String
	p.GeoRestrictions = geo.String
	if len(filterJSON) > 0 {
		if err := json.Unmarshal(filterJSON, &p.ContentFilter); err != nil {
			return p, err
		}
	}
	return p, nil
}

func collectProducts(rows *sql.Rows) ([]model.Product, error) {
	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan product data", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over products", err)
	}
	return products, nil
}
