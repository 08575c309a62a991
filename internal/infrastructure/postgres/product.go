package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/catalog"
)

// Numerics travel as text in both directions so that no driver-specific
// numeric type leaks into the domain.
const productColumns = `id, name, description, price::text, discount_price::text, stock,
		COALESCE(category_id, ''), brand, images, featured, rating::text, num_reviews, created_at, updated_at`

var productOrder = map[string]string{
	"price":      "price ASC",
	"-price":     "price DESC",
	"name":       "name ASC",
	"-name":      "name DESC",
	"createdAt":  "created_at ASC",
	"-createdAt": "created_at DESC",
	"rating":     "rating ASC",
	"-rating":    "rating DESC",
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ProductRepository implements catalog.ProductStore. Variant options live in
// their own table so that each option's stock can be decremented with a
// single conditional UPDATE.
type ProductRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

func scanProduct(row rowScanner, extra ...any) (catalog.Product, error) {
	var (
		p        catalog.Product
		price    string
		discount *string
		rating   string
		images   []byte
	)
	dest := append([]any{
		&p.ID, &p.Name, &p.Description, &price, &discount, &p.Stock,
		&p.CategoryID, &p.Brand, &images, &p.Featured, &rating, &p.NumReviews, &p.CreatedAt, &p.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return p, err
	}

	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return p, fmt.Errorf("parse price: %w", err)
	}
	if p.Rating, err = decimal.NewFromString(rating); err != nil {
		return p, fmt.Errorf("parse rating: %w", err)
	}
	if discount != nil {
		d, err := decimal.NewFromString(*discount)
		if err != nil {
			return p, fmt.Errorf("parse discount price: %w", err)
		}
		p.DiscountPrice = &d
	}
	p.Images = []string{}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return p, fmt.Errorf("decode images: %w", err)
		}
	}
	p.Variants = []catalog.Variant{}
	return p, nil
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func imagesJSON(images []string) ([]byte, error) {
	if images == nil {
		images = []string{}
	}
	return json.Marshal(images)
}

func (r *ProductRepository) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	variants, err := r.loadVariants(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if v, ok := variants[id]; ok {
		p.Variants = v
	}
	return &p, nil
}

func (r *ProductRepository) ListProducts(ctx context.Context, f catalog.ProductFilter) ([]catalog.Product, int, error) {
	var (
		where []string
		args  []any
	)
	if f.CategoryID != "" {
		args = append(args, f.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if f.MinPrice != nil {
		args = append(args, f.MinPrice.String())
		where = append(where, fmt.Sprintf("price >= $%d::numeric", len(args)))
	}
	if f.MaxPrice != nil {
		args = append(args, f.MaxPrice.String())
		where = append(where, fmt.Sprintf("price <= $%d::numeric", len(args)))
	}

	order, ok := productOrder[f.Sort]
	if !ok {
		order = productOrder["-createdAt"]
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + productColumns + `, count(*) OVER() AS total_count FROM products`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY " + order + ", id")
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset())
		fmt.Fprintf(&b, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		products []catalog.Product
		ids      []string
		total    int
	)
	for rows.Next() {
		p, err := scanProduct(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}

	if len(ids) > 0 {
		variants, err := r.loadVariants(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for i := range products {
			if v, ok := variants[products[i].ID]; ok {
				products[i].Variants = v
			}
		}
	}
	return products, total, nil
}

// loadVariants groups option rows back into variants, keeping insertion order.
func (r *ProductRepository) loadVariants(ctx context.Context, productIDs []string) (map[string][]catalog.Variant, error) {
	query := `
		SELECT product_id, variant_name, option_name, stock, price::text
		FROM product_variant_options
		WHERE product_id = ANY($1)
		ORDER BY product_id, position`

	rows, err := r.db.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]catalog.Variant)
	for rows.Next() {
		var (
			productID, variant string
			opt                catalog.Option
			price              *string
		)
		if err := rows.Scan(&productID, &variant, &opt.Name, &opt.Stock, &price); err != nil {
			return nil, fmt.Errorf("scan variant option: %w", err)
		}
		if price != nil {
			d, err := decimal.NewFromString(*price)
			if err != nil {
				return nil, fmt.Errorf("parse option price: %w", err)
			}
			opt.Price = &d
		}

		vs := out[productID]
		if n := len(vs); n > 0 && vs[n-1].Name == variant {
			vs[n-1].Options = append(vs[n-1].Options, opt)
		} else {
			vs = append(vs, catalog.Variant{Name: variant, Options: []catalog.Option{opt}})
		}
		out[productID] = vs
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant options: %w", err)
	}
	return out, nil
}

func insertOptions(ctx context.Context, tx pgx.Tx, p *catalog.Product) error {
	query := `
		INSERT INTO product_variant_options (product_id, variant_name, option_name, stock, price, position)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)`

	position := 0
	for _, v := range p.Variants {
		for _, opt := range v.Options {
			if _, err := tx.Exec(ctx, query, p.ID, v.Name, opt.Name, opt.Stock, decimalText(opt.Price), position); err != nil {
				return fmt.Errorf("insert variant option: %w", err)
			}
			position++
		}
	}
	return nil
}

func (r *ProductRepository) CreateProduct(ctx context.Context, p *catalog.Product) error {
	images, err := imagesJSON(p.Images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO products (id, name, description, price, discount_price, stock, category_id, brand,
			images, featured, rating, num_reviews, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, NULLIF($7, ''), $8, $9, $10, $11::numeric, $12, $13, $14)`

	_, err = tx.Exec(ctx, query,
		p.ID, p.Name, p.Description, p.Price.String(), decimalText(p.DiscountPrice), p.Stock,
		p.CategoryID, p.Brand, images, p.Featured, p.Rating.String(), p.NumReviews, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	if err := insertOptions(ctx, tx, p); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateProduct replaces the writable fields and the variant options. The
// rating summary is owned by UpdateRating and left alone.
func (r *ProductRepository) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	images, err := imagesJSON(p.Images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		UPDATE products SET name = $2, description = $3, price = $4::numeric, discount_price = $5::numeric,
			stock = $6, category_id = NULLIF($7, ''), brand = $8, images = $9, featured = $10, updated_at = $11
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query,
		p.ID, p.Name, p.Description, p.Price.String(), decimalText(p.DiscountPrice), p.Stock,
		p.CategoryID, p.Brand, images, p.Featured, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("product", p.ID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM product_variant_options WHERE product_id = $1`, p.ID); err != nil {
		return fmt.Errorf("clear variant options: %w", err)
	}
	if err := insertOptions(ctx, tx, p); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *ProductRepository) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("product", id)
	}
	return nil
}

// DecrementStock takes qty units in one conditional UPDATE. When sel names an
// existing option its stock is used, otherwise the product-level stock.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID string, sel *catalog.VariantSelector, qty int) error {
	if !sel.IsZero() {
		tag, err := r.db.Exec(ctx, `
			UPDATE product_variant_options SET stock = stock - $4
			WHERE product_id = $1 AND variant_name = $2 AND option_name = $3 AND stock >= $4`,
			productID, sel.Name, sel.Option, qty)
		if err != nil {
			return fmt.Errorf("decrement option stock: %w", err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		exists, err := r.optionExists(ctx, productID, sel)
		if err != nil {
			return err
		}
		if exists {
			return catalog.ErrOutOfStock
		}
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2`,
		productID, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	exists, err := r.productExists(ctx, productID)
	if err != nil {
		return err
	}
	if exists {
		return catalog.ErrOutOfStock
	}
	return apperror.NotFound("product", productID)
}

func (r *ProductRepository) RestoreStock(ctx context.Context, productID string, sel *catalog.VariantSelector, qty int) error {
	if !sel.IsZero() {
		tag, err := r.db.Exec(ctx, `
			UPDATE product_variant_options SET stock = stock + $4
			WHERE product_id = $1 AND variant_name = $2 AND option_name = $3`,
			productID, sel.Name, sel.Option, qty)
		if err != nil {
			return fmt.Errorf("restore option stock: %w", err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
	}

	tag, err := r.db.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`, productID, qty)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("product", productID)
	}
	return nil
}

func (r *ProductRepository) UpdateRating(ctx context.Context, productID string, rating decimal.Decimal, numReviews int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE products SET rating = $2::numeric, num_reviews = $3, updated_at = NOW()
		WHERE id = $1`,
		productID, rating.String(), numReviews)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("product", productID)
	}
	return nil
}

func (r *ProductRepository) productExists(ctx context.Context, productID string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check product: %w", err)
	}
	return exists, nil
}

func (r *ProductRepository) optionExists(ctx context.Context, productID string, sel *catalog.VariantSelector) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM product_variant_options
			WHERE product_id = $1 AND variant_name = $2 AND option_name = $3)`,
		productID, sel.Name, sel.Option).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check variant option: %w", err)
	}
	return exists, nil
}

var _ catalog.ProductStore = (*ProductRepository)(nil)
