package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"myride/internal/app"
	"myride/pkg/storage"
	"myride/pkg/store"
)

type fakeText struct {
	reply string
}

func (f *fakeText) GenerateText(context.Context, string, string) (string, error) {
	return f.reply, nil
}

type fakeImages struct{}

func (fakeImages) GenerateImages(context.Context, string, int, string) ([]string, error) {
	return []string{"https://img.example/showcase.png"}, nil
}

func newTestServer(t *testing.T, loginLimit int) (*httptest.Server, *fakeText) {
	t.Helper()
	text := &fakeText{reply: `{"value": 1}`}
	a, err := app.New(app.Config{
		Store:    store.NewMemoryStore(),
		Sessions: store.NewMemorySessionStore(),
		Objects:  storage.NewMemoryObjectStore(),
		Text:     text,
		Images:   fakeImages{},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	redis := miniredis.RunT(t)
	srv, err := New(Config{
		App:                     a,
		RedisAddr:               redis.Addr(),
		LoginRateLimitPerMinute: loginLimit,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, text
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func getJSON(t *testing.T, url, token string, out any) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	if out != nil {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func signupAndLogin(t *testing.T, base, email string) string {
	t.Helper()
	resp := postJSON(t, base+"/api/auth/signup", "", map[string]string{
		"email":          email,
		"password":       "s3cret-pass",
		"displayName":    "Tester",
		"invitationCode": "invite-" + email,
	})
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("signup status = %d: %s", resp.StatusCode, body)
	}
	resp.Body.Close()

	resp = postJSON(t, base+"/api/auth/login", "", map[string]string{
		"email": email, "password": "s3cret-pass",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var sess struct {
		Token string `json:"token"`
	}
	decode(t, resp, &sess)
	if sess.Token == "" {
		t.Fatalf("empty session token")
	}
	return sess.Token
}

func createVehicle(t *testing.T, base, token string) string {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"type": "car", "make": "Subaru", "model": "Outback",
		"year": "2019", "mileage": "42000",
		"purchasePrice": "24000", "purchaseYear": "2020",
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("photos", "front.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write([]byte("jpg"))
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, base+"/api/vehicles", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("create vehicle status = %d: %s", resp.StatusCode, body)
	}
	var v struct {
		ID string `json:"id"`
	}
	decode(t, resp, &v)
	return v.ID
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, 100)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	ts, _ := newTestServer(t, 100)
	resp := getJSON(t, ts.URL+"/api/vehicles", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestSignupLoginMe(t *testing.T) {
	ts, _ := newTestServer(t, 100)
	token := signupAndLogin(t, ts.URL, "a@example.com")

	var me struct {
		Email string `json:"email"`
	}
	resp := getJSON(t, ts.URL+"/api/members/me", token, &me)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	if me.Email != "a@example.com" {
		t.Fatalf("me email = %q", me.Email)
	}
}

func TestLoginRateLimit(t *testing.T) {
	ts, _ := newTestServer(t, 1)
	token := signupAndLogin(t, ts.URL, "a@example.com")
	_ = token

	resp := postJSON(t, ts.URL+"/api/auth/login", "", map[string]string{
		"email": "a@example.com", "password": "s3cret-pass",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second login status = %d, want 429", resp.StatusCode)
	}
}

func TestServerRequiresRedisRateLimiter(t *testing.T) {
	a, err := app.New(app.Config{
		Store:    store.NewMemoryStore(),
		Sessions: store.NewMemorySessionStore(),
		Objects:  storage.NewMemoryObjectStore(),
		Text:     &fakeText{reply: "{}"},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if _, err := New(Config{App: a}); err == nil {
		t.Fatalf("expected limiter initialization to fail without redis addr")
	}
}

func TestVehicleLifecycle(t *testing.T) {
	ts, _ := newTestServer(t, 100)
	token := signupAndLogin(t, ts.URL, "a@example.com")
	id := createVehicle(t, ts.URL, token)

	var view struct {
		ID        string   `json:"id"`
		PhotoURLs []string `json:"photoUrls"`
	}
	resp := getJSON(t, ts.URL+"/api/vehicles/"+id, token, &view)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get vehicle status = %d", resp.StatusCode)
	}
	if view.ID != id || len(view.PhotoURLs) != 1 {
		t.Fatalf("vehicle view = %+v", view)
	}

	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/api/vehicles/"+id,
		strings.NewReader(`{"listed": true, "askingPrice": 21000}`))
	req.Header.Set("Authorization", "Bearer "+token)
	patchResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch vehicle: %v", err)
	}
	patchResp.Body.Close()
	if patchResp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", patchResp.StatusCode)
	}

	var market []struct {
		ID string `json:"id"`
	}
	resp = getJSON(t, ts.URL+"/api/market", token, &market)
	if resp.StatusCode != http.StatusOK || len(market) != 1 || market[0].ID != id {
		t.Fatalf("market = %+v (status %d)", market, resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/vehicles/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete vehicle: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", delResp.StatusCode)
	}
	resp = getJSON(t, ts.URL+"/api/vehicles/"+id, token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", resp.StatusCode)
	}
}

func TestUnknownVehicleIsNotFoundWithCode(t *testing.T) {
	ts, _ := newTestServer(t, 100)
	token := signupAndLogin(t, ts.URL, "a@example.com")

	var body struct {
		Code      string `json:"code"`
		RequestID string `json:"requestId"`
	}
	resp := getJSON(t, ts.URL+"/api/vehicles/car-none-1", token, &body)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body.Code != "NOT_FOUND" {
		t.Fatalf("code = %q, want NOT_FOUND", body.Code)
	}
	if body.RequestID == "" {
		t.Fatalf("error response missing request id")
	}
}

func TestReceiptFlowAndSums(t *testing.T) {
	ts, _ := newTestServer(t, 100)
	token := signupAndLogin(t, ts.URL, "a@example.com")
	id := createVehicle(t, ts.URL, token)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"title": "Oil change", "date": "2026-03-14",
		"category": "Scheduled Maintenance", "mileage": "43000", "price": "80",
	} {
		_ = mw.WriteField(k, v)
	}
	fw, _ := mw.CreateFormFile("attachments", "invoice.pdf")
	_, _ = fw.Write([]byte("pdf"))
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/vehicles/"+id+"/receipts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("create receipt status = %d: %s", resp.StatusCode, body)
	}
	var receipt struct {
		ID             string   `json:"id"`
		AttachmentKeys []string `json:"attachmentKeys"`
	}
	decode(t, resp, &receipt)
	if len(receipt.AttachmentKeys) != 1 {
		t.Fatalf("attachment keys = %v", receipt.AttachmentKeys)
	}

	var sums struct {
		TotalSpent           float64 `json:"totalSpent"`
		WithoutPurchasePrice float64 `json:"withoutPurchasePrice"`
	}
	resp = getJSON(t, fmt.Sprintf("%s/api/vehicles/%s/receipts/sums", ts.URL, id), token, &sums)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sums status = %d", resp.StatusCode)
	}
	if sums.WithoutPurchasePrice != 80 || sums.TotalSpent != 24080 {
		t.Fatalf("sums = %+v", sums)
	}
}

func TestValuationEndpoint(t *testing.T) {
	ts, text := newTestServer(t, 100)
	token := signupAndLogin(t, ts.URL, "a@example.com")
	id := createVehicle(t, ts.URL, token)

	var points []struct {
		Year         int     `json:"year"`
		StraightLine float64 `json:"straightLine"`
	}
	resp := getJSON(t, ts.URL+"/api/vehicles/"+id+"/valuation", token, &points)
	if resp.StatusCode != http.StatusOK || len(points) == 0 {
		t.Fatalf("valuation status = %d, %d points", resp.StatusCode, len(points))
	}
	if points[0].StraightLine != 24000 {
		t.Fatalf("first point = %+v, want purchase price", points[0])
	}

	text.reply = `{"value": 18000}`
	resp = postJSON(t, ts.URL+"/api/vehicles/"+id+"/valuation/ai", token, map[string]string{})
	var est struct {
		Amount float64 `json:"amount"`
		Date   string  `json:"date"`
	}
	decode(t, resp, &est)
	if resp.StatusCode != http.StatusOK || est.Amount != 18000 || est.Date == "" {
		t.Fatalf("ai estimate = %+v (status %d)", est, resp.StatusCode)
	}
}

func TestAIUnparsableValuationCode(t *testing.T) {
	ts, text := newTestServer(t, 100)
	token := signupAndLogin(t, ts.URL, "a@example.com")
	id := createVehicle(t, ts.URL, token)

	text.reply = "somewhere around twenty grand"
	resp := postJSON(t, ts.URL+"/api/vehicles/"+id+"/valuation/ai", token, map[string]string{})
	var body struct {
		Code string `json:"code"`
	}
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if body.Code != "AI_RESPONSE_UNPARSABLE" {
		t.Fatalf("code = %q", body.Code)
	}
}

func TestConversationFlow(t *testing.T) {
	ts, _ := newTestServer(t, 100)
	buyerToken := signupAndLogin(t, ts.URL, "buyer@example.com")
	sellerToken := signupAndLogin(t, ts.URL, "seller@example.com")

	var seller struct {
		ID string `json:"id"`
	}
	getJSON(t, ts.URL+"/api/members/me", sellerToken, &seller)

	resp := postJSON(t, ts.URL+"/api/conversations", buyerToken, map[string]string{
		"memberId": seller.ID,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start conversation status = %d", resp.StatusCode)
	}
	var conv struct {
		ID string `json:"id"`
	}
	decode(t, resp, &conv)

	resp = postJSON(t, ts.URL+"/api/conversations/"+conv.ID+"/messages", buyerToken, map[string]string{
		"kind": "text", "content": "Still available?",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send message status = %d", resp.StatusCode)
	}

	var msgs []struct {
		Content string   `json:"content"`
		SeenBy  []string `json:"seenBy"`
	}
	resp = getJSON(t, ts.URL+"/api/conversations/"+conv.ID+"/messages", sellerToken, &msgs)
	if resp.StatusCode != http.StatusOK || len(msgs) != 1 {
		t.Fatalf("messages = %+v (status %d)", msgs, resp.StatusCode)
	}
	if msgs[0].Content != "Still available?" {
		t.Fatalf("message content = %q", msgs[0].Content)
	}
}
