package server

import (
	"context"
	"io"
	"strings"
	"unicode"

	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/storage"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// imageField is the multipart field carrying a post image.
const imageField = "image"

// parseObjectID extracts a route parameter as an ObjectID. The error message is
// derived from the parameter name ("postId" -> "Invalid post ID").
func parseObjectID(c *fiber.Ctx, param string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Params(param))
	if err != nil {
		return primitive.NilObjectID, models.NewBadRequestError("Invalid " + humanizeParam(param))
	}
	return id, nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "postId" -> "post ID", "commentId" -> "comment ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// parsePage reads page and limit query parameters. Out-of-range values are
// clamped later by PaginationOptions.Normalize.
func parsePage(c *fiber.Ctx) (page, limit int) {
	return c.QueryInt("page", repository.DefaultPage), c.QueryInt("limit", repository.DefaultLimit)
}

// bindBody parses a JSON, urlencoded or multipart body into dst.
func bindBody(c *fiber.Ctx, dst any) error {
	if len(c.Body()) == 0 && !isMultipart(c) {
		return nil
	}
	if err := c.BodyParser(dst); err != nil {
		return models.NewBadRequestError("Invalid request body")
	}
	return nil
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}

// formImage returns the uploaded image, or nil when the request carries none.
func formImage(c *fiber.Ctx) (*storage.ImageUpload, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, models.NewBadRequestError("Invalid multipart form")
	}
	files := form.File[imageField]
	if len(files) == 0 {
		return nil, nil
	}

	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, models.NewBadRequestError("Unable to read uploaded file")
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, models.NewBadRequestError("Unable to read uploaded file")
	}
	return &storage.ImageUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}

// isAdminByUserID reports whether the user may act on content owned by others.
func (s *Server) isAdminByUserID(ctx context.Context, userID primitive.ObjectID) (bool, error) {
	return s.userRepo.IsAdmin(ctx, userID)
}
