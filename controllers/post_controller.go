package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/socialbbs/middleware"
	"github.com/cppla/socialbbs/models"
	"github.com/cppla/socialbbs/upload"
	"github.com/cppla/socialbbs/utils"
)

// MaxGalleryPhotos caps how many photos a single post may carry.
const MaxGalleryPhotos = 12

const (
	cacheListPrefix   = "cache:posts:list:"
	cacheDetailPrefix = "cache:post:detail:"
)

// PostController manages posts, their images and comments.
type PostController struct {
	db    *gorm.DB
	files attachments
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, store upload.Store, registry *utils.UploadRegistry) *PostController {
	return &PostController{db: db, files: attachments{store: store, registry: registry}}
}

// CreatePost creates a post from a multipart form with an optional "image" file.
func (p *PostController) CreatePost(ctx *gin.Context) {
	images := upload.Files(ctx, "image")

	title := utils.SanitizeLine(upload.FormValue(ctx, "title"))
	if title == "" {
		p.files.discard(ctx, images)
		utils.Error(ctx, http.StatusBadRequest, "title cannot be empty")
		return
	}
	if len([]rune(title)) > 255 {
		p.files.discard(ctx, images)
		utils.Error(ctx, http.StatusBadRequest, "title too long")
		return
	}

	post := models.Post{
		UserID:  middleware.CurrentUserID(ctx),
		Title:   title,
		Content: utils.Sanitize(upload.FormValue(ctx, "content")),
	}
	if len(images) > 0 {
		post.ImageName = images[0].Name
		post.ImageURL = images[0].URL
	}

	if err := p.db.WithContext(ctx).Create(&post).Error; err != nil {
		p.files.discard(ctx, images)
		utils.Sugar.Errorf("create post: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, "failed to create post")
		return
	}
	p.files.claim(ctx, images, models.OwnerPost, post.ID)

	utils.InvalidateByPrefix(cacheListPrefix)
	utils.Created(ctx, gin.H{"post": post})
}

// AddPhotos appends the files sent under "photos" to the post gallery.
func (p *PostController) AddPhotos(ctx *gin.Context) {
	photos := upload.Files(ctx, "photos")
	if len(photos) == 0 {
		utils.Error(ctx, http.StatusBadRequest, "no photos uploaded")
		return
	}

	post, ok := p.ownedPost(ctx)
	if !ok {
		p.files.discard(ctx, photos)
		return
	}

	gallery := post.PhotoList()
	if len(gallery)+len(photos) > MaxGalleryPhotos {
		p.files.discard(ctx, photos)
		utils.Error(ctx, http.StatusBadRequest, fmt.Sprintf("a post holds at most %d photos", MaxGalleryPhotos))
		return
	}
	for _, f := range photos {
		gallery = append(gallery, models.Photo{Name: f.Name, URL: f.URL})
	}
	post.SetPhotoList(gallery)

	if err := p.db.WithContext(ctx).Model(post).Update("photos", post.Photos).Error; err != nil {
		p.files.discard(ctx, photos)
		utils.Sugar.Errorf("update post photos id=%d: %v", post.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, "failed to update post")
		return
	}
	p.files.claim(ctx, photos, models.OwnerPost, post.ID)

	invalidatePost(post.ID)
	utils.Success(ctx, gin.H{"post": post, "photos": gallery})
}

// ListPosts returns paginated posts including author information.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	cacheKey := fmt.Sprintf("%spage=%d:size=%d", cacheListPrefix, page, pageSize)
	if utils.ServeCached(ctx, cacheKey) {
		return
	}

	var posts []models.Post
	var total int64
	query := p.db.WithContext(ctx).Model(&models.Post{})
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to count posts")
		return
	}
	if err := query.Preload("User").Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to list posts")
		return
	}

	payload := gin.H{
		"items": posts,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	}
	utils.CacheSuccess(cacheKey, payload, time.Hour)
	utils.Success(ctx, payload)
}

// GetPost returns a single post with comments.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	cacheKey := cacheDetailPrefix + strconv.FormatUint(uint64(id), 10)
	if utils.ServeCached(ctx, cacheKey) {
		return
	}

	var post models.Post
	err := p.db.WithContext(ctx).
		Preload("User").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Comments.User").
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return
	}

	payload := gin.H{"post": post, "photos": post.PhotoList()}
	utils.CacheSuccess(cacheKey, payload, time.Hour)
	utils.Success(ctx, payload)
}

// DeletePost allows the author to delete their post together with its images.
func (p *PostController) DeletePost(ctx *gin.Context) {
	post, ok := p.ownedPost(ctx)
	if !ok {
		return
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(post).Error
	})
	if err != nil {
		utils.Sugar.Errorf("delete post id=%d: %v", post.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, "failed to delete post")
		return
	}
	p.files.remove(ctx, post.FileNames())

	utils.InvalidateByPrefix(cacheListPrefix)
	invalidatePost(post.ID)
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// CreateComment adds a comment. The body may be a multipart form, a urlencoded form or JSON.
func (p *PostController) CreateComment(ctx *gin.Context) {
	raw := upload.FormValue(ctx, "content")
	if raw == "" && strings.HasPrefix(ctx.ContentType(), "application/json") {
		var req struct {
			Content string `json:"content" binding:"required"`
		}
		if err := ctx.ShouldBindJSON(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
			return
		}
		raw = req.Content
	}

	var comment models.Comment
	if err := comment.SetContent(utils.Sanitize(raw)); err != nil {
		utils.Error(ctx, http.StatusBadRequest, err.Error())
		return
	}

	id, ok := parseID(ctx)
	if !ok {
		return
	}
	var post models.Post
	if err := p.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return
	}

	comment.PostID = post.ID
	comment.UserID = middleware.CurrentUserID(ctx)
	if err := p.db.WithContext(ctx).Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to create comment")
		return
	}
	if err := p.db.WithContext(ctx).Preload("User").First(&comment, comment.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to load comment")
		return
	}

	invalidatePost(post.ID)
	utils.Created(ctx, gin.H{"comment": comment})
}

// ownedPost loads the post named by :id and checks the caller wrote it. It answers the request
// itself when it returns false.
func (p *PostController) ownedPost(ctx *gin.Context) (*models.Post, bool) {
	id, ok := parseID(ctx)
	if !ok {
		return nil, false
	}
	var post models.Post
	if err := p.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, "post not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return nil, false
	}
	if post.UserID != middleware.CurrentUserID(ctx) {
		utils.Error(ctx, http.StatusForbidden, "you can only modify your own posts")
		return nil, false
	}
	return &post, true
}

func invalidatePost(id uint) {
	utils.InvalidateByPrefix(cacheDetailPrefix + strconv.FormatUint(uint64(id), 10))
}

func parseID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}
