// Package sheets はGoogle Sheetsへの申込データのミラー転送機能を提供する。
//
// サービスアカウントのJWT署名でアクセストークンを取得し、
// Sheets APIのvalues:appendエンドポイントで1申込1行を追記する。
package sheets

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/enrollman/internal/model"
)

const (
	// defaultBaseURL はSheets APIのスプレッドシートエンドポイント。
	defaultBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"
	// defaultTokenURL はGoogleのトークンエンドポイント。
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	// sheetsScope はSheets APIの読み書きスコープ。
	sheetsScope = "https://www.googleapis.com/auth/spreadsheets"

	// appendRange は申込行の追記対象範囲。
	appendRange = "Sheet1!A:F"
	// headerRange はヘッダー行の範囲。
	headerRange = "Sheet1!A1:F1"
)

// headerRow はシートが空の場合に書き込むヘッダー行。
var headerRow = []string{
	"تاريخ التسجيل",
	"الصف الدراسي",
	"اسم الطالب",
	"رقم هاتف الطالب",
	"رقم هاتف ولي الأمر",
	"اسم المدرسة",
}

// Config はSheetsクライアントの設定。
type Config struct {
	// ClientEmail はサービスアカウントのメールアドレス。
	ClientEmail string
	// PrivateKeyPEM はサービスアカウントの秘密鍵（PEM形式）。
	// 環境変数由来の`\n`エスケープ済み文字列も受け付ける。
	PrivateKeyPEM string
	// SpreadsheetID は転送先スプレッドシートのID。
	SpreadsheetID string

	// テスト用にオーバーライド可能なURL
	BaseURL  string
	TokenURL string
}

// Client はGoogle Sheets APIのクライアント。
// アクセストークンをキャッシュし、有効期限前に再利用する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	config     Config
	privateKey *rsa.PrivateKey

	mu            sync.Mutex
	accessToken   string
	tokenExpiry   time.Time
	headerEnsured bool
}

// NewClient はClientの新しいインスタンスを生成する。
// 秘密鍵のパースに失敗した場合はエラーを返す。
func NewClient(httpClient *http.Client, logger *slog.Logger, config Config) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}

	key, err := parsePrivateKey(config.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("サービスアカウント秘密鍵のパースに失敗しました: %w", err)
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger,
		config:     config,
		privateKey: key,
	}, nil
}

// parsePrivateKey はPEM形式のRSA秘密鍵をパースする。
// PKCS#8とPKCS#1の両形式に対応する。
func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	// 環境変数経由の鍵は改行が\nエスケープされていることがある
	pemData = strings.ReplaceAll(pemData, `\n`, "\n")

	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("PEMブロックが見つかりません")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("RSA以外の鍵形式です: %T", key)
		}
		return rsaKey, nil
	}

	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// AppendStudent は申込1件をスプレッドシートに1行として追記する。
// ヘッダー行が存在しない場合は先に書き込む（ヘッダー書き込み失敗は追記を妨げない）。
func (c *Client) AppendStudent(ctx context.Context, student *model.Student) error {
	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("アクセストークンの取得に失敗しました: %w", err)
	}

	if err := c.ensureHeader(ctx, token); err != nil {
		// ヘッダー確認の失敗はログのみ。追記は続行する。
		c.logger.Warn("ヘッダー行の確認に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	row := studentRow(student)
	body, err := json.Marshal(map[string][][]string{"values": {row}})
	if err != nil {
		return fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/values/%s:append?valueInputOption=RAW",
		c.config.BaseURL, c.config.SpreadsheetID, url.PathEscape(appendRange))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Sheets APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Sheets APIがステータス %d を返しました", resp.StatusCode)
	}
	return nil
}

// studentRow は申込をシートの1行に変換する。
// タイムスタンプはカイロ時間、学年はアラビア語の表示名で記録する。
func studentRow(student *model.Student) []string {
	return []string{
		student.CreatedAt.In(cairoLocation()).Format("2006-01-02 15:04:05"),
		student.Grade.Label(),
		student.StudentName,
		student.StudentPhone,
		student.ParentPhone,
		student.SchoolName,
	}
}

// cairoLocation はAfrica/Cairoのタイムゾーンを返す。
// tzdataが利用できない環境ではUTC+2の固定オフセットにフォールバックする。
func cairoLocation() *time.Location {
	loc, err := time.LoadLocation("Africa/Cairo")
	if err != nil {
		return time.FixedZone("EET", 2*60*60)
	}
	return loc
}

// ensureHeader はヘッダー行の存在を確認し、なければ書き込む。
// プロセス内で一度確認できたら以降はスキップする。
func (c *Client) ensureHeader(ctx context.Context, token string) error {
	c.mu.Lock()
	ensured := c.headerEnsured
	c.mu.Unlock()
	if ensured {
		return nil
	}

	getURL := fmt.Sprintf("%s/%s/values/%s",
		c.config.BaseURL, c.config.SpreadsheetID, url.PathEscape(headerRange))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ヘッダー行の取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Sheets APIがステータス %d を返しました", resp.StatusCode)
	}

	var result struct {
		Values [][]string `json:"values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("ヘッダー行のレスポンスのパースに失敗しました: %w", err)
	}

	if len(result.Values) == 0 {
		if err := c.writeHeader(ctx, token); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.headerEnsured = true
	c.mu.Unlock()
	return nil
}

// writeHeader はヘッダー行を書き込む。
func (c *Client) writeHeader(ctx context.Context, token string) error {
	body, err := json.Marshal(map[string][][]string{"values": {headerRow}})
	if err != nil {
		return fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	putURL := fmt.Sprintf("%s/%s/values/%s?valueInputOption=RAW",
		c.config.BaseURL, c.config.SpreadsheetID, url.PathEscape(headerRange))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ヘッダー行の書き込みに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Sheets APIがステータス %d を返しました", resp.StatusCode)
	}
	return nil
}

// tokenResponse はGoogleのトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// token はキャッシュ済みのアクセストークンを返すか、新規に取得する。
// 有効期限の1分前から再取得する。
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	assertion, err := c.signAssertion(time.Now())
	if err != nil {
		return "", fmt.Errorf("JWTアサーションの署名に失敗しました: %w", err)
	}

	data := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("トークンエンドポイントの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("トークンエンドポイントがステータス %d を返しました: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("トークンレスポンスのパースに失敗しました: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("アクセストークンが空です")
	}

	c.mu.Lock()
	c.accessToken = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	c.mu.Unlock()

	return tr.AccessToken, nil
}

// signAssertion はサービスアカウント認証用のJWT（RS256）を構築して署名する。
func (c *Client) signAssertion(now time.Time) (string, error) {
	header := map[string]string{
		"alg": "RS256",
		"typ": "JWT",
	}
	claims := map[string]any{
		"iss":   c.config.ClientEmail,
		"scope": sheetsScope,
		"aud":   c.config.TokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." + base64.RawURLEncoding.EncodeToString(claimsJSON)

	digest := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, c.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}
