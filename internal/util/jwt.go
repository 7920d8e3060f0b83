package util

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims 外部身份服务签发的令牌，sub 为用户唯一标识
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// GenerateJWT 本地联调与测试时签发令牌
func GenerateJWT(subject, name, email, secret string, expiration time.Duration) (string, error) {
	claims := &Claims{
		Name:  name,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(tokenString, secret, issuer string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// DisplayName 优先 name，其次邮箱前缀
func (c *Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if i := strings.Index(c.Email, "@"); i > 0 {
		return c.Email[:i]
	}
	if c.Email != "" {
		return c.Email
	}
	return "Candidate"
}

func GetUserFromContext(c *gin.Context) *Claims {
	user, exists := c.Get("user")
	if !exists {
		return nil
	}
	claims, ok := user.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// CurrentUserID 由身份中间件写入的本地用户 ID
func CurrentUserID(c *gin.Context) (uint, error) {
	v, ok := c.Get("userId")
	if !ok {
		return 0, ErrUserNotFound
	}
	id, ok := v.(uint)
	if !ok || id == 0 {
		return 0, ErrUserNotFound
	}
	return id, nil
}

func CurrentUserName(c *gin.Context) string {
	if claims := GetUserFromContext(c); claims != nil {
		return claims.DisplayName()
	}
	return "Candidate"
}
