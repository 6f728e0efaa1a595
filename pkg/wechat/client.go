// Package wechat is the boundary adapter for the WeChat Work messaging API:
// outbound text/image delivery, media download and URL verification. The
// conversation core only sees it through the service.Messenger interface.
package wechat

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const apiBase = "https://qyapi.weixin.qq.com/cgi-bin"

type Client struct {
	corpID     string
	corpSecret string
	agentID    string
	token      string

	http *resty.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

type apiError struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (e apiError) ok() bool { return e.ErrCode == 0 }

func NewClient(corpID, corpSecret, agentID, callbackToken string) *Client {
	return &Client{
		corpID:     corpID,
		corpSecret: corpSecret,
		agentID:    agentID,
		token:      callbackToken,
		http: resty.New().
			SetBaseURL(apiBase).
			SetTimeout(10 * time.Second),
	}
}

func (c *Client) getAccessToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	var out struct {
		apiError
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	_, err := c.http.R().
		SetQueryParams(map[string]string{
			"corpid":     c.corpID,
			"corpsecret": c.corpSecret,
		}).
		SetResult(&out).
		Get("/gettoken")
	if err != nil {
		return "", fmt.Errorf("gettoken request: %w", err)
	}
	if !out.ok() {
		return "", fmt.Errorf("gettoken: %d %s", out.ErrCode, out.ErrMsg)
	}

	c.accessToken = out.AccessToken
	// Refresh two minutes early.
	c.expiresAt = time.Now().Add(time.Duration(out.ExpiresIn-120) * time.Second)
	return c.accessToken, nil
}

// SendText delivers a plain text message to one user.
func (c *Client) SendText(userID, content string) error {
	token, err := c.getAccessToken()
	if err != nil {
		return err
	}
	var out apiError
	_, err = c.http.R().
		SetQueryParam("access_token", token).
		SetBody(map[string]interface{}{
			"touser":  userID,
			"msgtype": "text",
			"agentid": c.agentID,
			"text":    map[string]string{"content": content},
		}).
		SetResult(&out).
		Post("/message/send")
	if err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	if !out.ok() {
		return fmt.Errorf("send text: %d %s", out.ErrCode, out.ErrMsg)
	}
	return nil
}

// SendImage uploads the PNG as temporary media and sends it to the user.
func (c *Client) SendImage(userID string, png []byte) error {
	token, err := c.getAccessToken()
	if err != nil {
		return err
	}

	var uploaded struct {
		apiError
		MediaID string `json:"media_id"`
	}
	_, err = c.http.R().
		SetQueryParams(map[string]string{
			"access_token": token,
			"type":         "image",
		}).
		SetFileReader("media", "report.png", bytes.NewReader(png)).
		SetResult(&uploaded).
		Post("/media/upload")
	if err != nil {
		return fmt.Errorf("upload image: %w", err)
	}
	if !uploaded.ok() || uploaded.MediaID == "" {
		return fmt.Errorf("upload image: %d %s", uploaded.ErrCode, uploaded.ErrMsg)
	}

	var out apiError
	_, err = c.http.R().
		SetQueryParam("access_token", token).
		SetBody(map[string]interface{}{
			"touser":  userID,
			"msgtype": "image",
			"agentid": c.agentID,
			"image":   map[string]string{"media_id": uploaded.MediaID},
		}).
		SetResult(&out).
		Post("/message/send")
	if err != nil {
		return fmt.Errorf("send image: %w", err)
	}
	if !out.ok() {
		return fmt.Errorf("send image: %d %s", out.ErrCode, out.ErrMsg)
	}
	return nil
}

// DownloadMedia fetches uploaded media by id into destPath.
func (c *Client) DownloadMedia(mediaID, destPath string) error {
	token, err := c.getAccessToken()
	if err != nil {
		return err
	}
	resp, err := c.http.R().
		SetQueryParams(map[string]string{
			"access_token": token,
			"media_id":     mediaID,
		}).
		Get("/media/get")
	if err != nil {
		return fmt.Errorf("download media: %w", err)
	}
	body := resp.Body()
	// Error responses come back as JSON instead of file bytes.
	if strings.HasPrefix(strings.TrimSpace(string(body)), `{"errcode"`) {
		return fmt.Errorf("download media %s: %s", mediaID, string(body))
	}
	return os.WriteFile(destPath, body, 0o644)
}

// VerifyURL checks the callback signature and returns the echo string to
// answer the channel's GET verification with.
func (c *Client) VerifyURL(signature, timestamp, nonce, echostr string) (string, bool) {
	parts := []string{c.token, timestamp, nonce, echostr}
	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "")))
	if hex.EncodeToString(sum[:]) != signature {
		return "", false
	}
	return echostr, true
}
