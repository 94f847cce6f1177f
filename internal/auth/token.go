package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// TokenIssuer はメール確認用トークンの発行と検証を行う。
// トークンは base64url(userID|expiresUnix|hex(HMAC-SHA256)) の形式で、
// サーバー側に状態を持たない。署名鍵はアプリケーションのシークレットキー。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue は指定ユーザーのメール確認トークンを発行する。
func (t *TokenIssuer) Issue(userID string) string {
	expires := time.Now().Add(t.ttl).Unix()
	payload := fmt.Sprintf("%s|%d", userID, expires)
	sig := t.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(payload + "|" + sig))
}

// Parse はトークンを検証し、ユーザーIDを返す。
// 署名不一致、形式不正、期限切れの場合はINVALID_TOKENエラーを返す。
func (t *TokenIssuer) Parse(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", model.NewInvalidTokenError()
	}

	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 {
		return "", model.NewInvalidTokenError()
	}
	userID, expiresStr, sig := parts[0], parts[1], parts[2]

	payload := userID + "|" + expiresStr
	if !hmac.Equal([]byte(t.sign(payload)), []byte(sig)) {
		return "", model.NewInvalidTokenError()
	}

	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return "", model.NewInvalidTokenError()
	}
	if time.Now().Unix() > expires {
		return "", model.NewInvalidTokenError()
	}

	return userID, nil
}

func (t *TokenIssuer) sign(payload string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
