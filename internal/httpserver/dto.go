package httpserver

import "time"

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=50"`
	Email           string `json:"email" validate:"required,email,max=100"`
	Password        string `json:"password" validate:"required,min=6,max=100"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"omitempty,oneof=admin customer"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=100"`
}

type bookRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Author      string     `json:"author" validate:"required,max=100"`
	Description string     `json:"description" validate:"required,max=1000"`
	Price       int64      `json:"price" validate:"gte=0"`
	Stock       int        `json:"stock" validate:"gte=0"`
	CategoryID  uint       `json:"category_id" validate:"required"`
	ISBN        *string    `json:"isbn" validate:"omitempty,max=13"`
	PageCount   *int       `json:"page_count" validate:"omitempty,gt=0"`
	PublishedAt *time.Time `json:"published_at"`
	Language    string     `json:"language" validate:"max=50"`
}

type bookPatchRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Author      *string    `json:"author" validate:"omitempty,min=1,max=100"`
	Description *string    `json:"description" validate:"omitempty,max=1000"`
	Price       *int64     `json:"price" validate:"omitempty,gte=0"`
	CategoryID  *uint      `json:"category_id" validate:"omitempty,gt=0"`
	ISBN        *string    `json:"isbn" validate:"omitempty,max=13"`
	PageCount   *int       `json:"page_count" validate:"omitempty,gt=0"`
	PublishedAt *time.Time `json:"published_at"`
	Language    *string    `json:"language" validate:"omitempty,max=50"`
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	ImageURL    string `json:"image_url" validate:"max=300"`
}

type categoryPatchRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	ImageURL    *string `json:"image_url" validate:"omitempty,max=300"`
}

type deliveryFields struct {
	DeliveryAddress string `json:"delivery_address" validate:"max=500"`
	Phone           string `json:"phone" validate:"max=20"`
	Notes           string `json:"notes" validate:"max=1000"`
}

type createOrderRequest struct {
	BookID   uint `json:"book_id" validate:"required"`
	Quantity int  `json:"quantity" validate:"required,gt=0"`
	deliveryFields
}

type checkoutRequest struct {
	deliveryFields
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Confirmed Shipped Delivered Cancelled"`
}

type cartItemRequest struct {
	BookID   uint `json:"book_id" validate:"required"`
	Quantity int  `json:"quantity" validate:"required,gt=0"`
}

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type stockRequest struct {
	Stock *int `json:"stock" validate:"required,gte=0"`
}
