package gifticon

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		recognizer  *mockRecognizer
		now         time.Time
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		service = NewServiceWithDeps(db, recognizer, storage, &mockIDGenerator{id: "test-id-123"}, &mockTimeSource{now: now})
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	do := func(method, path string, body io.Reader, contentType string) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, v interface{}) {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, v)).To(Succeed())
	}

	multipartBody := func(filename string, data []byte) (*bytes.Buffer, string) {
		var b bytes.Buffer
		writer := multipart.NewWriter(&b)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())
		return &b, writer.FormDataContentType()
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		recognizer = newMockRecognizer()
		now = time.Date(2025, 1, 10, 14, 30, 0, 0, kst)
		auth = BasicAuth{}
		ghttpServer = nil
	})

	JustBeforeEach(func() {
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleHealth", func() {
		It("should return status OK", func() {
			resp := do(http.MethodGet, "/healthz", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
		})

		It("should reject requests without credentials", func() {
			resp := do(http.MethodGet, "/api/gifticons", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})

		It("should accept valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/gifticons", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:pass")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should reject wrong credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/gifticons", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("user", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("Handler", func() {
		It("should answer CORS preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, "/api/gifticons", nil)
			Expect(err).NotTo(HaveOccurred())
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Header().Get("Access-Control-Allow-Methods")).To(ContainSubstring("PATCH"))
		})
	})

	Describe("handleExtract", func() {
		It("should return the extracted fields", func() {
			body := strings.NewReader(`{"texts": ["[스타벅스] 카페라떼 T", "유효기간: 2025년 01월 29일", "7698 8656 3188 4321"]}`)
			resp := do(http.MethodPost, "/api/extract", body, "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			decode(resp, &result)
			Expect(result).To(HaveKeyWithValue("brand", "스타벅스"))
			Expect(result).To(HaveKeyWithValue("product_name", "카페라떼 T"))
			Expect(result["expiration_date"]).To(HavePrefix("2025-01-29T00:00:00"))
		})

		It("should reject a malformed body", func() {
			resp := do(http.MethodPost, "/api/extract", strings.NewReader("{"), "application/json")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("handleScanGifticon", func() {
		It("should return a draft without saving it", func() {
			body, contentType := multipartBody("voucher.jpg", []byte("fake image data"))
			resp := do(http.MethodPost, "/api/gifticons/scan", body, contentType)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var draft gifticonResponse
			decode(resp, &draft)
			Expect(draft.ID).To(Equal("test-id-123"))
			Expect(draft.Brand).To(Equal("스타벅스"))
			Expect(draft.Status).To(Equal(StatusAvailable))
			Expect(db.gifticons).To(BeEmpty())
			Expect(storage.files).To(HaveKey("test-id-123_voucher.jpg"))
		})

		It("should guess the content type from the extension", func() {
			body, contentType := multipartBody("voucher.png", []byte("fake image data"))
			resp := do(http.MethodPost, "/api/gifticons/scan", body, contentType)

			var draft gifticonResponse
			decode(resp, &draft)
			Expect(draft.ContentType).To(Equal("image/png"))
		})

		It("should require a file", func() {
			var b bytes.Buffer
			writer := multipart.NewWriter(&b)
			Expect(writer.WriteField("note", "no file")).To(Succeed())
			Expect(writer.Close()).To(Succeed())

			resp := do(http.MethodPost, "/api/gifticons/scan", &b, writer.FormDataContentType())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var errResp map[string]string
			decode(resp, &errResp)
			Expect(errResp["error"]).To(ContainSubstring("No file was selected"))
		})

		When("storage fails", func() {
			BeforeEach(func() {
				storage.saveErr = errors.New("disk full")
			})

			It("should return status Bad Request", func() {
				body, contentType := multipartBody("voucher.jpg", []byte("fake image data"))
				resp := do(http.MethodPost, "/api/gifticons/scan", body, contentType)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleCreateGifticon", func() {
		It("should scan and save a multipart upload", func() {
			body, contentType := multipartBody("voucher.jpg", []byte("fake image data"))
			resp := do(http.MethodPost, "/api/gifticons", body, contentType)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

			var created gifticonResponse
			decode(resp, &created)
			Expect(created.ProductName).To(Equal("카페라떼 T"))
			Expect(db.gifticons).To(HaveKey("test-id-123"))
		})

		It("should save basic info on request", func() {
			body, contentType := multipartBody("voucher.jpg", []byte("fake image data"))
			resp := do(http.MethodPost, "/api/gifticons?basic=true", body, contentType)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var created gifticonResponse
			decode(resp, &created)
			Expect(created.Brand).To(Equal("기타"))
			Expect(created.ProductName).To(Equal("기프티콘"))
		})

		It("should save a JSON draft", func() {
			body := strings.NewReader(`{"brand": "CU", "product_name": "바나나우유", "expiration_date": "2025-03-01T00:00:00+09:00", "price": 1700}`)
			resp := do(http.MethodPost, "/api/gifticons", body, "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var created gifticonResponse
			decode(resp, &created)
			Expect(created.ID).To(Equal("test-id-123"))
			Expect(*created.Price).To(Equal(1700))
			Expect(db.gifticons["test-id-123"].Brand).To(Equal("CU"))
		})

		It("should reject an incomplete JSON draft", func() {
			body := strings.NewReader(`{"brand": "CU"}`)
			resp := do(http.MethodPost, "/api/gifticons", body, "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var errResp map[string]string
			decode(resp, &errResp)
			Expect(errResp["error"]).To(ContainSubstring("product name is required"))
		})

		It("should reject a duplicate ID", func() {
			db.gifticons["taken"] = &Gifticon{ID: "taken"}
			body := strings.NewReader(`{"id": "taken", "brand": "CU", "product_name": "바나나우유", "expiration_date": "2025-03-01T00:00:00+09:00"}`)
			resp := do(http.MethodPost, "/api/gifticons", body, "application/json")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})
	})

	Describe("handleListGifticons", func() {
		BeforeEach(func() {
			db.gifticons["soon"] = &Gifticon{ID: "soon", ExpirationDate: now.AddDate(0, 0, 3)}
			db.gifticons["late"] = &Gifticon{ID: "late", ExpirationDate: now.AddDate(0, 1, 0)}
			db.gifticons["used"] = &Gifticon{ID: "used", IsUsed: true, ExpirationDate: now.AddDate(0, 1, 0)}
			db.gifticons["expired"] = &Gifticon{ID: "expired", ExpirationDate: now.AddDate(0, 0, -1)}
		})

		list := func(query string) []gifticonResponse {
			resp := do(http.MethodGet, "/api/gifticons"+query, nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var out []gifticonResponse
			decode(resp, &out)
			return out
		}

		It("should list the available view by default", func() {
			out := list("")
			Expect(out).To(HaveLen(2))
			Expect(out[0].ID).To(Equal("soon"))
			Expect(out[1].ID).To(Equal("late"))
			Expect(out[0].Status).To(Equal(StatusAvailable))
		})

		It("should list the used/expired view", func() {
			out := list("?view=used-expired")
			Expect(out).To(HaveLen(2))
			Expect(out[0].ID).To(Equal("used"))
			Expect(out[1].Status).To(Equal(StatusExpired))
		})

		It("should filter and sort the used/expired view", func() {
			out := list("?view=used-expired&status=expired&sort=asc")
			Expect(out).To(HaveLen(1))
			Expect(out[0].ID).To(Equal("expired"))
		})

		It("should reject an unknown filter", func() {
			resp := do(http.MethodGet, "/api/gifticons?view=used-expired&status=pending", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should reject an unknown view", func() {
			resp := do(http.MethodGet, "/api/gifticons?view=everything", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("db error")
			})

			It("should return status Internal Server Error", func() {
				resp := do(http.MethodGet, "/api/gifticons", nil, "")
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("handleListGifticons with no gifticons", func() {
		It("should return an empty array", func() {
			resp := do(http.MethodGet, "/api/gifticons", nil, "")
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.TrimSpace(string(body))).To(Equal("[]"))
		})
	})

	Describe("single gifticon routes", func() {
		BeforeEach(func() {
			db.gifticons["id1"] = &Gifticon{
				ID:             "id1",
				Brand:          "기타",
				ProductName:    "기프티콘",
				ExpirationDate: now.AddDate(0, 0, 30),
				ImagePath:      "id1_voucher.png",
				ContentType:    "image/png",
			}
			storage.files["id1_voucher.png"] = []byte("png data")
		})

		It("should get a gifticon", func() {
			resp := do(http.MethodGet, "/api/gifticons/id1", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var got gifticonResponse
			decode(resp, &got)
			Expect(got.ID).To(Equal("id1"))
		})

		It("should return 404 for a missing gifticon", func() {
			resp := do(http.MethodGet, "/api/gifticons/nope", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should serve the image", func() {
			resp := do(http.MethodGet, "/api/gifticons/id1/image", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("png data"))
		})

		It("should edit a gifticon", func() {
			body := strings.NewReader(`{"brand": "메가커피", "product_name": "아이스 아메리카노"}`)
			resp := do(http.MethodPatch, "/api/gifticons/id1", body, "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var got gifticonResponse
			decode(resp, &got)
			Expect(got.Brand).To(Equal("메가커피"))
			Expect(db.gifticons["id1"].ProductName).To(Equal("아이스 아메리카노"))
		})

		It("should reject an invalid edit", func() {
			body := strings.NewReader(`{"brand": ""}`)
			resp := do(http.MethodPatch, "/api/gifticons/id1", body, "application/json")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(db.gifticons["id1"].Brand).To(Equal("기타"))
		})

		It("should mark a gifticon used", func() {
			resp := do(http.MethodPost, "/api/gifticons/id1/use", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var got gifticonResponse
			decode(resp, &got)
			Expect(got.Status).To(Equal(StatusUsed))
		})

		It("should revert a used gifticon", func() {
			db.gifticons["id1"].IsUsed = true
			resp := do(http.MethodPost, "/api/gifticons/id1/unuse", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var got gifticonResponse
			decode(resp, &got)
			Expect(got.Status).To(Equal(StatusAvailable))
		})

		It("should move a gifticon to the trash", func() {
			resp := do(http.MethodDelete, "/api/gifticons/id1", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.trash).To(HaveKey("id1"))
			Expect(storage.files).To(HaveKey("id1_voucher.png"))
		})

		It("should delete a gifticon outright when asked to", func() {
			resp := do(http.MethodDelete, "/api/gifticons/id1?permanent=true", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.gifticons).NotTo(HaveKey("id1"))
			Expect(db.trash).To(BeEmpty())
			Expect(storage.files).NotTo(HaveKey("id1_voucher.png"))
		})
	})

	Describe("trash routes", func() {
		BeforeEach(func() {
			trashedAt := now.Add(-time.Hour)
			db.trash["id1"] = &Gifticon{ID: "id1", ImagePath: "id1_voucher.png", TrashedAt: &trashedAt}
			storage.files["id1_voucher.png"] = []byte("png data")
		})

		It("should list the trash", func() {
			resp := do(http.MethodGet, "/api/trash", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var out []gifticonResponse
			decode(resp, &out)
			Expect(out).To(HaveLen(1))
			Expect(out[0].TrashedAt).NotTo(BeNil())
		})

		It("should restore a gifticon", func() {
			resp := do(http.MethodPost, "/api/trash/id1/restore", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(db.gifticons).To(HaveKey("id1"))
		})

		It("should delete a gifticon permanently", func() {
			resp := do(http.MethodDelete, "/api/trash/id1", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.trash).To(BeEmpty())
			Expect(storage.files).To(BeEmpty())
		})

		It("should refuse to reuse the ID of a trashed gifticon", func() {
			body := strings.NewReader(`{"id": "id1", "brand": "CU", "product_name": "바나나우유", "expiration_date": "2025-03-01T00:00:00+09:00"}`)
			resp := do(http.MethodPost, "/api/gifticons", body, "application/json")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
			Expect(db.gifticons).NotTo(HaveKey("id1"))
		})

		It("should return 404 when restoring a missing gifticon", func() {
			resp := do(http.MethodPost, "/api/trash/nope/restore", nil, "")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})
})
