package repo

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/Lucassml-boop/commerce-e/internal/database"
	"github.com/Lucassml-boop/commerce-e/internal/domain"
)

// ProductRepository 定义商品数据访问接口。
// 目录查询引擎在内存中完成过滤与排序，仓储只负责提供商品快照与单品读写。
type ProductRepository interface {
	Create(product *domain.Product) error
	GetByID(id int64) (*domain.Product, error)
	GetByIDs(ids []int64) ([]*domain.Product, error)
	// ListAll 返回全量商品快照，供目录查询引擎使用
	ListAll() ([]*domain.Product, error)
	// ListOnOffer 返回在售打折商品，按折扣力度降序
	ListOnOffer() ([]*domain.Product, error)
	Update(product *domain.Product) error
	Delete(id int64) error
	Count() (int64, error)
}

// productRepo 是 ProductRepository 接口的数据库实现
type productRepo struct {
	db *database.DB
}

// NewProductRepository 创建商品仓储实例
func NewProductRepository(db *database.DB) ProductRepository {
	return &productRepo{db: db}
}

const productColumns = `id, name, description, category, price, stock, image_url,
	is_on_offer, original_price, discount_percentage, offer_start_date, offer_end_date,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.Price,
		&p.Stock,
		&p.ImageURL,
		&p.IsOnOffer,
		&p.OriginalPrice,
		&p.DiscountPercentage,
		&p.OfferStartDate,
		&p.OfferEndDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create 创建商品
func (r *productRepo) Create(product *domain.Product) error {
	query := `
		INSERT INTO products (name, description, category, price, stock, image_url,
			is_on_offer, original_price, discount_percentage, offer_start_date, offer_end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		product.Name,
		product.Description,
		product.Category,
		product.Price,
		product.Stock,
		product.ImageURL,
		product.IsOnOffer,
		product.OriginalPrice,
		product.DiscountPercentage,
		product.OfferStartDate,
		product.OfferEndDate,
	)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	product.ID = id
	return nil
}

// GetByID 根据ID查询商品
func (r *productRepo) GetByID(id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`

	product, err := scanProduct(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 商品不存在
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return product, nil
}

// GetByIDs 批量查询商品
func (r *productRepo) GetByIDs(ids []int64) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + placeholders + `)`

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// ListAll 返回全量商品快照。
// 按主键排序保证快照顺序稳定，目录引擎的稳定排序依赖这一点。
func (r *productRepo) ListAll() ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// ListOnOffer 返回打折商品，折扣力度大的排在前面
func (r *productRepo) ListOnOffer() ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE is_on_offer = true
		ORDER BY discount_percentage DESC, id`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list products on offer: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// Update 更新商品全部字段
func (r *productRepo) Update(product *domain.Product) error {
	query := `
		UPDATE products
		SET name = ?, description = ?, category = ?, price = ?, stock = ?, image_url = ?,
		    is_on_offer = ?, original_price = ?, discount_percentage = ?,
		    offer_start_date = ?, offer_end_date = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		product.Name,
		product.Description,
		product.Category,
		product.Price,
		product.Stock,
		product.ImageURL,
		product.IsOnOffer,
		product.OriginalPrice,
		product.DiscountPercentage,
		product.OfferStartDate,
		product.OfferEndDate,
		product.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("product %d not found", product.ID)
	}

	return nil
}

// Delete 删除商品
func (r *productRepo) Delete(id int64) error {
	query := `DELETE FROM products WHERE id = ?`

	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	return nil
}

// Count 获取商品总数
func (r *productRepo) Count() (int64, error) {
	var total int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

func collectProducts(rows *sql.Rows) ([]*domain.Product, error) {
	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}
