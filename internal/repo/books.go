package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/models"
)

func (r *GormRepo) GetActiveBook(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	if err := r.DB.WithContext(ctx).
		Preload("Category").
		Where("id = ? AND is_active = ?", id, true).
		First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *GormRepo) GetBook(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *GormRepo) ListBooks(ctx context.Context, offset, limit int) (int64, []models.Book, error) {
	q := r.DB.WithContext(ctx).Model(&models.Book{}).Where("is_active = ?", true)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Book
	if err := r.DB.WithContext(ctx).
		Preload("Category").
		Where("is_active = ?", true).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func (r *GormRepo) CreateBook(ctx context.Context, book *models.Book) error {
	return r.DB.WithContext(ctx).Create(book).Error
}

// UpdateBookDetails writes the editable columns of an active book. Stock and
// the active flag are never written here; they belong to the ledger and SoftDeleteBook.
func (r *GormRepo) UpdateBookDetails(ctx context.Context, book *models.Book) error {
	res := r.DB.WithContext(ctx).Model(&models.Book{}).
		Where("id = ? AND is_active = ?", book.ID, true).
		UpdateColumns(map[string]any{
			"title":        book.Title,
			"author":       book.Author,
			"description":  book.Description,
			"price":        book.Price,
			"category_id":  book.CategoryID,
			"isbn":         book.ISBN,
			"page_count":   book.PageCount,
			"published_at": book.PublishedAt,
			"language":     book.Language,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) SoftDeleteBook(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Model(&models.Book{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func likePattern(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
	return "%" + s + "%"
}

func applyBookFilter(q *gorm.DB, f domain.BookFilter) *gorm.DB {
	q = q.Where("books.is_active = ?", true)
	if f.Query != "" {
		p := likePattern(f.Query)
		q = q.Where(
			`(LOWER(books.title) LIKE ? ESCAPE '\' OR LOWER(books.author) LIKE ? ESCAPE '\' OR LOWER(books.description) LIKE ? ESCAPE '\' OR LOWER(COALESCE(books.isbn, '')) LIKE ? ESCAPE '\')`,
			p, p, p, p,
		)
	}
	if f.CategoryID != nil {
		q = q.Where("books.category_id = ?", *f.CategoryID)
	}
	if f.MinPrice != nil {
		q = q.Where("books.price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("books.price <= ?", *f.MaxPrice)
	}
	if f.Author != "" {
		q = q.Where(`LOWER(books.author) LIKE ? ESCAPE '\'`, likePattern(f.Author))
	}
	return q
}

func (r *GormRepo) SearchBooks(ctx context.Context, f domain.BookFilter, offset, limit int) (int64, []models.Book, error) {
	var total int64
	if err := applyBookFilter(r.DB.WithContext(ctx).Model(&models.Book{}), f).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Book
	if err := applyBookFilter(r.DB.WithContext(ctx).Model(&models.Book{}), f).
		Preload("Category").
		Order("books.created_at DESC").Order("books.id DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// BooksByIDs keeps the order of ids and drops inactive or unknown books.
func (r *GormRepo) BooksByIDs(ctx context.Context, ids []uint) ([]models.Book, error) {
	if len(ids) == 0 {
		return []models.Book{}, nil
	}
	var found []models.Book
	if err := r.DB.WithContext(ctx).
		Preload("Category").
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&found).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint]models.Book, len(found))
	for _, b := range found {
		byID[b.ID] = b
	}
	out := make([]models.Book, 0, len(found))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *GormRepo) NewestBooks(ctx context.Context, n int) ([]models.Book, error) {
	var items []models.Book
	err := r.DB.WithContext(ctx).
		Preload("Category").
		Where("is_active = ?", true).
		Order("created_at DESC").Order("id DESC").
		Limit(n).
		Find(&items).Error
	return items, err
}

func (r *GormRepo) PopularBookIDs(ctx context.Context, n int) ([]uint, error) {
	var rows []struct {
		BookID uint
		Cnt    int64
	}
	if err := r.DB.WithContext(ctx).Model(&models.Order{}).
		Select("book_id, COUNT(*) AS cnt").
		Group("book_id").
		Order("cnt DESC").Order("book_id ASC").
		Limit(n).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.BookID)
	}
	return ids, nil
}

func (r *GormRepo) CountActiveBooks(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Book{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}

func (r *GormRepo) CountLowStockBooks(ctx context.Context, threshold int) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Book{}).
		Where("is_active = ? AND stock <= ?", true, threshold).
		Count(&n).Error
	return n, err
}
