package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/socialbbs/middleware"
	"github.com/cppla/socialbbs/models"
	"github.com/cppla/socialbbs/upload"
	"github.com/cppla/socialbbs/utils"
)

// AuthController handles accounts, tokens and profiles.
type AuthController struct {
	db        *gorm.DB
	files     attachments
	jwtSecret string
	tokenTTL  time.Duration
}

// NewAuthController creates an AuthController issuing tokens signed with jwtSecret.
func NewAuthController(db *gorm.DB, store upload.Store, registry *utils.UploadRegistry, jwtSecret string, tokenTTL time.Duration) *AuthController {
	return &AuthController{
		db:        db,
		files:     attachments{store: store, registry: registry},
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

type credentials struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"required"`
}

// Register handles local account registration with bcrypt hashing.
func (a *AuthController) Register(ctx *gin.Context) {
	var req credentials
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if !validUsername(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, "username may only contain letters, digits, '-' and '_'")
		return
	}

	var existing models.User
	err := a.db.WithContext(ctx).Where("username = ?", req.Username).First(&existing).Error
	if err == nil {
		utils.Error(ctx, http.StatusConflict, "username already exists")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusInternalServerError, "failed to check username")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooShort) {
			utils.Error(ctx, http.StatusBadRequest, "password must be at least 8 characters")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
	}
	if err := a.db.WithContext(ctx).Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to create user")
		return
	}

	a.respondWithToken(ctx, http.StatusCreated, user)
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, "invalid username or password")
		return
	}

	a.respondWithToken(ctx, http.StatusOK, user)
}

func (a *AuthController) respondWithToken(ctx *gin.Context, status int, user models.User) {
	token, err := utils.GenerateToken(a.jwtSecret, user.ID, user.Username, a.tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to generate token")
		return
	}
	utils.Respond(ctx, status, true, "", gin.H{"token": token, "user": user})
}

// Me returns the current authenticated user's information.
func (a *AuthController) Me(ctx *gin.Context) {
	var user models.User
	if err := a.db.WithContext(ctx).First(&user, middleware.CurrentUserID(ctx)).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, "user not found")
		return
	}
	utils.Success(ctx, user)
}

// UpdateProfile replaces avatar and cover images and the bio. Replaced images are deleted.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	avatar, hasAvatar := upload.File(ctx, "avatar")
	cover, hasCover := upload.File(ctx, "cover")
	accepted := upload.AllFiles(ctx)

	var user models.User
	if err := a.db.WithContext(ctx).First(&user, middleware.CurrentUserID(ctx)).Error; err != nil {
		a.files.discard(ctx, accepted)
		utils.Error(ctx, http.StatusNotFound, "user not found")
		return
	}

	var replaced []string
	if hasAvatar {
		if user.AvatarName != "" {
			replaced = append(replaced, user.AvatarName)
		}
		user.AvatarName, user.AvatarURL = avatar.Name, avatar.URL
	}
	if hasCover {
		if user.CoverName != "" {
			replaced = append(replaced, user.CoverName)
		}
		user.CoverName, user.CoverURL = cover.Name, cover.URL
	}
	if bio, ok := upload.LookupFormValue(ctx, "bio"); ok {
		bio = utils.SanitizeLine(bio)
		if rs := []rune(bio); len(rs) > 255 {
			bio = string(rs[:255])
		}
		user.Bio = bio
	}

	if err := a.db.WithContext(ctx).Save(&user).Error; err != nil {
		a.files.discard(ctx, accepted)
		utils.Error(ctx, http.StatusInternalServerError, "failed to update profile")
		return
	}
	a.files.claim(ctx, accepted, models.OwnerUser, user.ID)
	a.files.remove(ctx, replaced)

	utils.Success(ctx, user)
}

func validUsername(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-' || r == '_' {
			continue
		}
		return false
	}
	return true
}
