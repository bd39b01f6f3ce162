package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/service/catalog"
	"github.com/Skotchmaster/bookstore/internal/util"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

type CatalogHTTP struct {
	Svc *catalog.Service
}

func (h *CatalogHTTP) ListBooks(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books_list")

	page, size := pageParams(c)
	res, err := h.Svc.ListBooks(ctx, page, size)
	if err != nil {
		return fail(l, "list_books", err)
	}
	return respond(c, http.StatusOK, "", res)
}

func (h *CatalogHTTP) GetBook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books_get")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	book, err := h.Svc.GetBook(ctx, id)
	if err != nil {
		return fail(l, "get_book", err)
	}
	return respond(c, http.StatusOK, "", book)
}

func (h *CatalogHTTP) SearchBooks(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books_search")

	term := c.QueryParam("searchTerm")
	if term == "" {
		term = c.QueryParam("q")
	}
	f := domain.BookFilter{Query: term, Author: c.QueryParam("author")}
	var err error
	if f.CategoryID, err = optionalUint(c, "categoryId"); err != nil {
		return err
	}
	if f.MinPrice, err = optionalInt64(c, "minPrice"); err != nil {
		return err
	}
	if f.MaxPrice, err = optionalInt64(c, "maxPrice"); err != nil {
		return err
	}

	page, size := pageParams(c)
	res, err := h.Svc.Search(ctx, f, page, size)
	if err != nil {
		return fail(l, "search_books", err)
	}
	return respond(c, http.StatusOK, "", res)
}

func (h *CatalogHTTP) Newest(c echo.Context) error {
	ctx := c.Request().Context()
	books, err := h.Svc.Newest(ctx, util.ParseIntDefault(c.QueryParam("count"), 10))
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "books_newest"), "newest_books", err)
	}
	return respond(c, http.StatusOK, "", books)
}

func (h *CatalogHTTP) Popular(c echo.Context) error {
	ctx := c.Request().Context()
	books, err := h.Svc.Popular(ctx, util.ParseIntDefault(c.QueryParam("count"), 10))
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "books_popular"), "popular_books", err)
	}
	return respond(c, http.StatusOK, "", books)
}

func (h *CatalogHTTP) CreateBook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books_create")

	var req bookRequest
	if err := bind(c, &req); err != nil {
		l.Warn("create_book_failed", "status", 400, "error", err)
		return err
	}
	book, err := h.Svc.CreateBook(ctx, catalog.BookInput{
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		ISBN:        req.ISBN,
		PageCount:   req.PageCount,
		PublishedAt: req.PublishedAt,
		Language:    req.Language,
	})
	if err != nil {
		return fail(l, "create_book", err)
	}
	return respond(c, http.StatusCreated, "Book created", book)
}

func (h *CatalogHTTP) UpdateBook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books_update")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req bookPatchRequest
	if err := bind(c, &req); err != nil {
		l.Warn("update_book_failed", "status", 400, "error", err)
		return err
	}
	book, err := h.Svc.UpdateBook(ctx, id, catalog.BookPatch{
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		ISBN:        req.ISBN,
		PageCount:   req.PageCount,
		PublishedAt: req.PublishedAt,
		Language:    req.Language,
	})
	if err != nil {
		return fail(l, "update_book", err)
	}
	return respond(c, http.StatusOK, "Book updated", book)
}

func (h *CatalogHTTP) DeleteBook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books_delete")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteBook(ctx, id); err != nil {
		return fail(l, "delete_book", err)
	}
	return respond(c, http.StatusOK, "Book deleted", nil)
}

func (h *CatalogHTTP) ListCategories(c echo.Context) error {
	ctx := c.Request().Context()
	cats, err := h.Svc.ListCategories(ctx)
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "categories_list"), "list_categories", err)
	}
	return respond(c, http.StatusOK, "", cats)
}

func (h *CatalogHTTP) GetCategory(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	cat, err := h.Svc.GetCategory(ctx, id)
	if err != nil {
		return fail(logging.FromContext(ctx).With("handler", "categories_get"), "get_category", err)
	}
	return respond(c, http.StatusOK, "", cat)
}

func (h *CatalogHTTP) CreateCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "categories_create")

	var req categoryRequest
	if err := bind(c, &req); err != nil {
		l.Warn("create_category_failed", "status", 400, "error", err)
		return err
	}
	cat, err := h.Svc.CreateCategory(ctx, catalog.CategoryInput{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return fail(l, "create_category", err)
	}
	return respond(c, http.StatusCreated, "Category created", cat)
}

func (h *CatalogHTTP) UpdateCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "categories_update")

	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req categoryPatchRequest
	if err := bind(c, &req); err != nil {
		l.Warn("update_category_failed", "status", 400, "error", err)
		return err
	}
	cat, err := h.Svc.UpdateCategory(ctx, id, catalog.CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return fail(l, "update_category", err)
	}
	return respond(c, http.StatusOK, "Category updated", cat)
}

func (h *CatalogHTTP) DeleteCategory(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteCategory(ctx, id); err != nil {
		return fail(logging.FromContext(ctx).With("handler", "categories_delete"), "delete_category", err)
	}
	return respond(c, http.StatusOK, "Category deleted", nil)
}
