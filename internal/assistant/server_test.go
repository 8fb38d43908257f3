package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/card-assistant/internal/extraction"
	"github.com/zombor/card-assistant/internal/scanning"
)

func multipartBody(filename, contentType string, data []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return body, writer.FormDataContentType()
}

func decodeBody(resp *http.Response, v any) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, v)).To(Succeed())
}

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		scanner     *mockScanner
		extractor   *mockExtractor
		responder   *mockResponder
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		scanner = newMockScanner()
		extractor = &mockExtractor{text: &scanning.PDFText{Pages: 1, Text: "배송은 3일 걸립니다"}}
		responder = newMockResponder()
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(db, scanner, newMockStorage(), extractor, responder,
			&mockIDGenerator{ids: []string{"new-1"}},
			&mockTimeSource{now: time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)})
		server := NewServerWithRouter(service, auth, chi.NewRouter())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	Describe("handleIndex", func() {
		It("should return the HTML interface", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/html; charset=utf-8"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("명함 비서"))
		})

		It("should reject other methods", func() {
			resp, err := http.Post(ghttpServer.URL()+"/", "text/plain", nil)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	Describe("static assets", func() {
		It("should serve the script", func() {
			resp, err := http.Get(ghttpServer.URL() + "/static/app.js")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/javascript; charset=utf-8"))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/cards", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Origin", "http://example.com")
			req.Header.Set("Access-Control-Request-Method", "POST")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should reject requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/cards")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should accept valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/cards", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "secret")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should leave the health check open", func() {
			resp, err := http.Get(ghttpServer.URL() + "/healthz")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("handleListCards", func() {
		When("no cards exist", func() {
			It("should return an empty array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/cards")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var cards []*Card
				decodeBody(resp, &cards)
				Expect(cards).NotTo(BeNil())
				Expect(cards).To(BeEmpty())
			})
		})

		When("cards exist", func() {
			BeforeEach(func() {
				db.cards["a"] = testCard("a", "홍길동")
				db.cards["b"] = testCard("b", "김철수")
			})

			It("should return all cards", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/cards")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json; charset=utf-8"))
				var cards []*Card
				decodeBody(resp, &cards)
				Expect(cards).To(HaveLen(2))
			})
		})
	})

	Describe("handleUploadCard", func() {
		var (
			filename    string
			contentType string
			resp        *http.Response
		)

		BeforeEach(func() {
			filename = "card.jpg"
			contentType = "image/jpeg"
		})

		JustBeforeEach(func() {
			body, formType := multipartBody(filename, contentType, []byte("image data"))
			var err error
			resp, err = http.Post(ghttpServer.URL()+"/api/cards", formType, body)
			Expect(err).NotTo(HaveOccurred())
		})

		When("the scan succeeds", func() {
			It("should return the created card", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				var card Card
				decodeBody(resp, &card)
				Expect(card.ID).To(Equal("new-1"))
				Expect(card.Name).To(Equal("홍길동"))
				Expect(db.cards).To(HaveKey("new-1"))
			})
		})

		When("the scan fails", func() {
			BeforeEach(func() {
				scanner.scanErr = errors.New("tesseract exploded")
			})

			It("should return 422 with the failure record", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				var body struct {
					Error string `json:"error"`
					Card  *Card  `json:"card"`
				}
				decodeBody(resp, &body)
				Expect(body.Error).To(ContainSubstring("tesseract exploded"))
				Expect(body.Card.Name).To(Equal(extraction.ErrorValue))
				Expect(body.Card.RawText).To(Equal(extraction.FailedRawText))
			})
		})
	})

	Describe("handleUploadCard without a file", func() {
		It("should return 400", func() {
			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			Expect(writer.WriteField("note", "nothing")).To(Succeed())
			Expect(writer.Close()).To(Succeed())
			resp, err := http.Post(ghttpServer.URL()+"/api/cards", writer.FormDataContentType(), body)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			var out map[string]string
			decodeBody(resp, &out)
			Expect(out["error"]).To(ContainSubstring("No file was selected"))
		})
	})

	Describe("handleGetCard", func() {
		BeforeEach(func() {
			db.cards["a"] = testCard("a", "홍길동")
		})

		It("should return the card", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/cards/a")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var card Card
			decodeBody(resp, &card)
			Expect(card.Name).To(Equal("홍길동"))
		})

		It("should return 404 for a missing card", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/cards/missing")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleDeleteCard", func() {
		It("should return 404 for a missing card", func() {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/cards/missing", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleGetCardVCard", func() {
		BeforeEach(func() {
			db.cards["a"] = testCard("a", "홍길동")
		})

		It("should return a vCard attachment", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/cards/a/vcard")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/vcard; charset=utf-8"))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("a.vcf"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("FN:홍길동"))
		})
	})

	Describe("handleGetCardQRCode", func() {
		BeforeEach(func() {
			db.cards["a"] = testCard("a", "홍길동")
		})

		It("should return a PNG", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/cards/a/qrcode")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
		})
	})

	Describe("handleUploadDocument", func() {
		It("should return the document summary", func() {
			body, formType := multipartBody("guide.pdf", "application/pdf", []byte("%PDF-1.4"))
			resp, err := http.Post(ghttpServer.URL()+"/api/documents", formType, body)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			var summary DocumentSummary
			decodeBody(resp, &summary)
			Expect(summary.ID).To(Equal("new-1"))
			Expect(summary.ChunkCount).To(Equal(1))
		})

		When("the PDF has no text", func() {
			BeforeEach(func() {
				extractor.text = &scanning.PDFText{Pages: 1}
			})

			It("should return 400", func() {
				body, formType := multipartBody("scan.pdf", "application/pdf", []byte("%PDF-1.4"))
				resp, err := http.Post(ghttpServer.URL()+"/api/documents", formType, body)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleListDocuments", func() {
		BeforeEach(func() {
			db.documents["d"] = &Document{ID: "d", Name: "a.pdf", Text: "x y", Chunks: []string{"x", "y"}}
		})

		It("should omit the text and chunks", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents")
			Expect(err).NotTo(HaveOccurred())
			var docs []map[string]any
			decodeBody(resp, &docs)
			Expect(docs).To(HaveLen(1))
			Expect(docs[0]).NotTo(HaveKey("chunks"))
			Expect(docs[0]).NotTo(HaveKey("text"))
			Expect(docs[0]).To(HaveKeyWithValue("chunk_count", BeNumerically("==", 2)))
		})
	})

	Describe("handleGetDocument", func() {
		BeforeEach(func() {
			db.documents["d"] = &Document{ID: "d", Name: "a.pdf", Text: "출장비 규정 전문"}
		})

		It("should return the document text", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents/d")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var doc Document
			decodeBody(resp, &doc)
			Expect(doc.Text).To(Equal("출장비 규정 전문"))
		})

		It("should return 404 for an unknown document", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents/missing")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleSearchDocuments", func() {
		BeforeEach(func() {
			db.documents["d"] = &Document{ID: "d", Name: "a.pdf", Text: "출장비 정산은 30일 이내"}
		})

		It("should return the matches with their position", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents/search?q=" + url.QueryEscape("정산"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var results []SearchResult
			decodeBody(resp, &results)
			Expect(results).To(ConsistOf(SearchResult{
				DocumentID:   "d",
				DocumentName: "a.pdf",
				Position:     4,
				Context:      "출장비 정산은 30일 이내",
			}))
		})

		It("should return 400 without a query", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents/search")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("handleAsk", func() {
		post := func(body string) *http.Response {
			resp, err := http.Post(ghttpServer.URL()+"/api/ask", "application/json", bytes.NewBufferString(body))
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("should return the conversation entry", func() {
			resp := post(`{"question": "안녕하세요"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var entry ConversationEntry
			decodeBody(resp, &entry)
			Expect(entry.Answer).To(Equal("mock answer"))
			Expect(entry.Category).To(Equal(CategoryChat))
		})

		It("should reject an empty question", func() {
			resp := post(`{"question": ""}`)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should reject malformed JSON", func() {
			resp := post(`{"question":`)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should return 404 for an unknown card", func() {
			resp := post(`{"question": "누구야", "card_id": "missing"}`)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("conversations", func() {
		BeforeEach(func() {
			db.conversations = []*ConversationEntry{{ID: "1"}, {ID: "2"}}
		})

		It("should list newest first", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/conversations")
			Expect(err).NotTo(HaveOccurred())
			var entries []*ConversationEntry
			decodeBody(resp, &entries)
			Expect(entries[0].ID).To(Equal("2"))
		})

		It("should clear the log", func() {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/conversations", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.conversations).To(BeEmpty())
		})
	})

	Describe("handleStats", func() {
		It("should report counts and providers", func() {
			db.cards["a"] = testCard("a", "홍길동")
			resp, err := http.Get(ghttpServer.URL() + "/api/stats")
			Expect(err).NotTo(HaveOccurred())
			var stats Stats
			decodeBody(resp, &stats)
			Expect(stats.Cards).To(Equal(1))
			Expect(stats.Providers).To(Equal([]string{"mock"}))
		})
	})
})

var _ = Describe("Server lifecycle", func() {
	var server *Server

	BeforeEach(func() {
		service := NewService(newMockDB(), newMockScanner(), newMockStorage(), &mockExtractor{}, newMockResponder())
		server = NewServer(service, BasicAuth{})
	})

	It("should not start after an early shutdown", func() {
		Expect(server.Shutdown(context.Background())).To(Succeed())
		Expect(server.Start("127.0.0.1:0")).To(Succeed())
	})

	It("should stop a running server", func() {
		done := make(chan error, 1)
		go func() {
			done <- server.Start("127.0.0.1:0")
		}()

		Expect(server.Shutdown(context.Background())).To(Succeed())
		Eventually(done).Should(Receive(BeNil()))
	})

	It("should report a bad address", func() {
		Expect(server.Start("not-an-address")).To(MatchError(ContainSubstring("listening on")))
	})
})
