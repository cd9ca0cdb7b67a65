package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post is the aggregate root stored in the posts collection. Comments and their
// replies are embedded and only change through the parent document.
type Post struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title         string               `bson:"title" json:"title" validate:"required"`
	Content       string               `bson:"content" json:"content" validate:"required"`
	Image         string               `bson:"image,omitempty" json:"image,omitempty"`
	ImagePublicID string               `bson:"imagePublicId,omitempty" json:"-"`
	Author        primitive.ObjectID   `bson:"author" json:"author" validate:"required"`
	AuthorProfile *UserSummary         `bson:"authorProfile,omitempty" json:"authorProfile,omitempty"`
	Comments      []Comment            `bson:"comments" json:"comments"`
	Likes         []primitive.ObjectID `bson:"likes" json:"likes"`
	Tags          []string             `bson:"tags" json:"tags"`
	Active        bool                 `bson:"active" json:"active"`
	EditedAt      *time.Time           `bson:"editedAt,omitempty" json:"editedAt,omitempty"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	PublishedAt   time.Time            `bson:"publishedAt" json:"publishedAt"`
}

// IsOwnedBy reports whether userID authored the post.
func (p *Post) IsOwnedBy(userID primitive.ObjectID) bool {
	return p.Author == userID
}

// FindComment returns the embedded comment with the given id, or nil.
func (p *Post) FindComment(id primitive.ObjectID) *Comment {
	for i := range p.Comments {
		if p.Comments[i].ID == id {
			return &p.Comments[i]
		}
	}
	return nil
}

// Comment is embedded in Post.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Comment   string             `bson:"comment" json:"comment"`
	Replies   []Reply            `bson:"replies" json:"replies"`
	EditedAt  *time.Time         `bson:"editedAt,omitempty" json:"editedAt,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// FindReply returns the embedded reply with the given id, or nil.
func (c *Comment) FindReply(id primitive.ObjectID) *Reply {
	for i := range c.Replies {
		if c.Replies[i].ID == id {
			return &c.Replies[i]
		}
	}
	return nil
}

// Reply is embedded in Comment.
type Reply struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Comment   string             `bson:"comment" json:"comment"`
	EditedAt  *time.Time         `bson:"editedAt,omitempty" json:"editedAt,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// NewPost returns an active post with empty embedded collections.
func NewPost(author primitive.ObjectID, title, content string, tags []string, now time.Time) *Post {
	if tags == nil {
		tags = []string{}
	}
	return &Post{
		Title:       title,
		Content:     content,
		Author:      author,
		Comments:    []Comment{},
		Likes:       []primitive.ObjectID{},
		Tags:        tags,
		Active:      true,
		CreatedAt:   now,
		PublishedAt: now,
	}
}

// NewComment returns a comment with a fresh id.
func NewComment(user primitive.ObjectID, text string, now time.Time) Comment {
	return Comment{
		ID:        primitive.NewObjectID(),
		User:      user,
		Comment:   text,
		Replies:   []Reply{},
		CreatedAt: now,
	}
}

// NewReply returns a reply with a fresh id.
func NewReply(user primitive.ObjectID, text string, now time.Time) Reply {
	return Reply{
		ID:        primitive.NewObjectID(),
		User:      user,
		Comment:   text,
		CreatedAt: now,
	}
}
