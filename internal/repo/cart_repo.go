package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Lucassml-boop/commerce-e/internal/database"
	"github.com/Lucassml-boop/commerce-e/internal/domain"
)

// CartRepository 定义购物车数据访问接口。
// cart_items 表在 (user_id, product_id) 上有唯一约束，
// 同一用户同一商品最多一行，合并逻辑由服务层完成。
type CartRepository interface {
	GetItem(userID, productID int64) (*domain.CartItem, error)
	GetItemByID(id int64) (*domain.CartItem, error)
	// ListByUser 返回用户购物车的全部行，带商品信息，按加入时间排序
	ListByUser(userID int64) ([]*domain.CartItemWithProduct, error)
	Insert(item *domain.CartItem) error
	UpdateQuantity(id, quantity int64) error
	Delete(id int64) error
	DeleteByUser(userID int64) error
	// CountByUser 返回用户购物车的商品总件数（各行数量之和）。
	// 角标重算随请求触发，带上下文以便取消
	CountByUser(ctx context.Context, userID int64) (int64, error)
}

// cartRepo 是 CartRepository 接口的数据库实现
type cartRepo struct {
	db *database.DB
}

// NewCartRepository 创建购物车仓储实例
func NewCartRepository(db *database.DB) CartRepository {
	return &cartRepo{db: db}
}

const cartItemColumns = `id, user_id, product_id, quantity, created_at, updated_at`

func scanCartItem(row *sql.Row) (*domain.CartItem, error) {
	item := &domain.CartItem{}
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.Quantity,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 行不存在
		}
		return nil, err
	}
	return item, nil
}

// GetItem 查询用户购物车中某商品对应的行
func (r *cartRepo) GetItem(userID, productID int64) (*domain.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE user_id = ? AND product_id = ?`
	item, err := scanCartItem(r.db.QueryRow(query, userID, productID))
	if err != nil {
		return nil, fmt.Errorf("get cart item: %w", err)
	}
	return item, nil
}

// GetItemByID 根据行ID查询购物车行
func (r *cartRepo) GetItemByID(id int64) (*domain.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE id = ?`
	item, err := scanCartItem(r.db.QueryRow(query, id))
	if err != nil {
		return nil, fmt.Errorf("get cart item by id: %w", err)
	}
	return item, nil
}

// ListByUser 返回用户购物车的全部行。
// LEFT JOIN 保证商品被删除后残留的行仍然可见，商品信息为 nil，
// 由业务层决定如何展示和计价。
func (r *cartRepo) ListByUser(userID int64) ([]*domain.CartItemWithProduct, error) {
	query := `
		SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
		       p.id, p.name, p.description, p.category, p.price, p.stock, p.image_url,
		       p.is_on_offer, p.original_price, p.discount_percentage,
		       p.offer_start_date, p.offer_end_date, p.created_at, p.updated_at
		FROM cart_items ci
		LEFT JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = ?
		ORDER BY ci.created_at, ci.id
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	var items []*domain.CartItemWithProduct
	for rows.Next() {
		item := &domain.CartItem{}
		// 商品字段可能整行为 NULL，先扫到可空中间变量
		var (
			pID       sql.NullInt64
			pName     sql.NullString
			pDesc     sql.NullString
			pCategory sql.NullString
			pPrice    sql.NullFloat64
			pStock    sql.NullInt64
			pImageURL sql.NullString
			pOnOffer  sql.NullBool
			pOrig     sql.NullFloat64
			pDiscount sql.NullFloat64
			pStart    sql.NullTime
			pEnd      sql.NullTime
			pCreated  sql.NullTime
			pUpdated  sql.NullTime
		)

		err := rows.Scan(
			&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt,
			&pID, &pName, &pDesc, &pCategory, &pPrice, &pStock, &pImageURL,
			&pOnOffer, &pOrig, &pDiscount, &pStart, &pEnd, &pCreated, &pUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}

		withProduct := &domain.CartItemWithProduct{CartItem: item}
		if pID.Valid {
			p := &domain.Product{
				ID:          pID.Int64,
				Name:        pName.String,
				Description: pDesc.String,
				Category:    pCategory.String,
				Price:       pPrice.Float64,
				Stock:       pStock.Int64,
				ImageURL:    pImageURL.String,
				IsOnOffer:   pOnOffer.Bool,
				CreatedAt:   pCreated.Time,
				UpdatedAt:   pUpdated.Time,
			}
			if pOrig.Valid {
				p.OriginalPrice = &pOrig.Float64
			}
			if pDiscount.Valid {
				p.DiscountPercentage = &pDiscount.Float64
			}
			if pStart.Valid {
				p.OfferStartDate = &pStart.Time
			}
			if pEnd.Valid {
				p.OfferEndDate = &pEnd.Time
			}
			withProduct.Product = p
		}
		items = append(items, withProduct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}
	return items, nil
}

// Insert 插入新的购物车行
func (r *cartRepo) Insert(item *domain.CartItem) error {
	query := `INSERT INTO cart_items (user_id, product_id, quantity) VALUES (?, ?, ?)`

	result, err := r.db.Exec(query, item.UserID, item.ProductID, item.Quantity)
	if err != nil {
		return fmt.Errorf("insert cart item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	item.ID = id
	return nil
}

// UpdateQuantity 更新购物车行的数量
func (r *cartRepo) UpdateQuantity(id, quantity int64) error {
	query := `UPDATE cart_items SET quantity = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := r.db.Exec(query, quantity, id)
	if err != nil {
		return fmt.Errorf("update cart item quantity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("cart item %d not found", id)
	}

	return nil
}

// Delete 删除购物车行
func (r *cartRepo) Delete(id int64) error {
	query := `DELETE FROM cart_items WHERE id = ?`

	if _, err := r.db.Exec(query, id); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

// DeleteByUser 清空用户购物车
func (r *cartRepo) DeleteByUser(userID int64) error {
	query := `DELETE FROM cart_items WHERE user_id = ?`

	if _, err := r.db.Exec(query, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// CountByUser 返回用户购物车的商品总件数
func (r *cartRepo) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	query := `SELECT COALESCE(SUM(quantity), 0) FROM cart_items WHERE user_id = ?`
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cart items: %w", err)
	}
	return count, nil
}
