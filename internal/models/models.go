package models

import (
	"time"
)

// Prices are integer minor units (cents).

type Category struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"       json:"id"`
	Name        string    `gorm:"uniqueIndex;size:100;not null"  json:"name"`
	Description string    `gorm:"size:500"                       json:"description"`
	ImageURL    string    `gorm:"size:300"                       json:"image_url,omitempty"`
	IsActive    bool      `gorm:"not null;index"                 json:"is_active"`
	CreatedAt   time.Time `                                      json:"created_at"`
	UpdatedAt   time.Time `                                      json:"updated_at"`
}

type Book struct {
	ID          uint       `gorm:"primaryKey;autoIncrement"      json:"id"`
	Title       string     `gorm:"size:200;not null;index"       json:"title"`
	Author      string     `gorm:"size:100;not null;index"       json:"author"`
	Description string     `gorm:"size:1000;not null"            json:"description"`
	Price       int64      `gorm:"not null;check:price >= 0"     json:"price"`
	Stock       int        `gorm:"not null;check:stock >= 0"     json:"stock"`
	CategoryID  uint       `gorm:"not null;index"                json:"category_id"`
	Category    *Category  `gorm:"foreignKey:CategoryID"         json:"category,omitempty"`
	ISBN        *string    `gorm:"size:13"                       json:"isbn,omitempty"`
	PageCount   *int       `                                     json:"page_count,omitempty"`
	PublishedAt *time.Time `                                     json:"published_at,omitempty"`
	Language    string     `gorm:"size:50"                       json:"language"`
	IsActive    bool       `gorm:"not null;index"                json:"is_active"`
	CreatedAt   time.Time  `gorm:"index"                         json:"created_at"`
	UpdatedAt   time.Time  `                                     json:"updated_at"`
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"      json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50;not null"  json:"username"`
	Email        string    `gorm:"uniqueIndex;size:100;not null" json:"email"`
	PasswordHash string    `gorm:"not null"                      json:"-"`
	Role         Role      `gorm:"size:20;not null"              json:"role"`
	IsActive     bool      `gorm:"not null"                      json:"is_active"`
	CreatedAt    time.Time `                                     json:"created_at"`
	UpdatedAt    time.Time `                                     json:"updated_at"`
}

type CartItem struct {
	ID        uint      `gorm:"primaryKey"                                  json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_book"     json:"user_id"`
	BookID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_book"     json:"book_id"`
	Book      *Book     `gorm:"foreignKey:BookID"                           json:"book,omitempty"`
	Quantity  int       `gorm:"not null;check:quantity > 0"                 json:"quantity"`
	CreatedAt time.Time `                                                   json:"created_at"`
	UpdatedAt time.Time `                                                   json:"updated_at"`
}

type Order struct {
	ID              uint        `gorm:"primaryKey;autoIncrement"       json:"id"`
	Number          string      `gorm:"uniqueIndex;size:26;not null"   json:"number"`
	CheckoutRef     string      `gorm:"index;size:26"                  json:"checkout_ref,omitempty"`
	UserID          uint        `gorm:"not null;index"                 json:"user_id"`
	User            *User       `gorm:"foreignKey:UserID"              json:"user,omitempty"`
	BookID          uint        `gorm:"not null;index"                 json:"book_id"`
	Book            *Book       `gorm:"foreignKey:BookID"              json:"book,omitempty"`
	Quantity        int         `gorm:"not null;check:quantity > 0"    json:"quantity"`
	UnitPrice       int64       `gorm:"not null"                       json:"unit_price"`
	TotalPrice      int64       `gorm:"not null"                       json:"total_price"`
	Status          OrderStatus `gorm:"size:20;not null;index"         json:"status"`
	DeliveryAddress string      `gorm:"size:500"                       json:"delivery_address,omitempty"`
	Phone           string      `gorm:"size:20"                        json:"phone,omitempty"`
	Notes           string      `gorm:"size:1000"                      json:"notes,omitempty"`
	OrderedAt       time.Time   `gorm:"not null;index"                 json:"ordered_at"`
	CreatedAt       time.Time   `                                      json:"created_at"`
	UpdatedAt       time.Time   `                                      json:"updated_at"`
}

type Favorite struct {
	ID        uint      `gorm:"primaryKey"                                json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_favorite_user_book" json:"user_id"`
	BookID    uint      `gorm:"not null;uniqueIndex:idx_favorite_user_book" json:"book_id"`
	Book      *Book     `gorm:"foreignKey:BookID"                         json:"book,omitempty"`
	CreatedAt time.Time `                                                 json:"created_at"`
}

type RefreshToken struct {
	ID        uint       `gorm:"primaryKey"                     json:"id"`
	TokenHash string     `gorm:"uniqueIndex;size:64;not null"   json:"-"`
	UserID    uint       `gorm:"not null;index"                 json:"user_id"`
	ExpiresAt time.Time  `gorm:"not null;index"                 json:"expires_at"`
	IsActive  bool       `gorm:"not null;index"                 json:"is_active"`
	RevokedAt *time.Time `                                      json:"revoked_at,omitempty"`
	CreatedAt time.Time  `                                      json:"created_at"`
}

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&Category{},
		&Book{},
		&User{},
		&CartItem{},
		&Order{},
		&Favorite{},
		&RefreshToken{},
	}
}
