package session

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/splitcheck/internal/receipt"
)

var _ = Describe("Integration", func() {
	var (
		store       *BoltStore
		storage     *LocalStorage
		storagePath string
		service     *Service
		server      *Server
		ghServer    *ghttp.Server
	)

	BeforeEach(func() {
		tempDir := GinkgoT().TempDir()
		storagePath = filepath.Join(tempDir, "photos")

		var err error
		store, err = NewBoltStore(filepath.Join(tempDir, "sessions.db"))
		Expect(err).NotTo(HaveOccurred())
		storage, err = NewLocalStorage(storagePath)
		Expect(err).NotTo(HaveOccurred())

		service = NewService(store, &mockScanner{raw: dinnerRaw()}, storage, receipt.NewCalculator())
		server = NewServer(service, BasicAuth{})
		ghServer = ghttp.NewServer()
	})

	AfterEach(func() {
		ghServer.Close()
		store.Close()
	})

	request := func(method, path, body string) *http.Response {
		ghServer.AppendHandlers(server.ServeHTTP)
		req, err := http.NewRequest(method, ghServer.URL()+path, strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	It("splits an uploaded receipt between participants", func() {
		// --- Upload ---
		var b bytes.Buffer
		writer := multipart.NewWriter(&b)
		part, err := writer.CreateFormFile("file", "dinner.jpg")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("fake jpeg"))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		ghServer.AppendHandlers(server.ServeHTTP)
		resp, err := http.Post(ghServer.URL()+"/api/receipts", writer.FormDataContentType(), &b)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var created struct {
			Session sessionView `json:"session"`
		}
		Expect(json.NewDecoder(resp.Body).Decode(&created)).To(Succeed())
		key := created.Session.Key
		Expect(key).NotTo(BeEmpty())
		Expect(filepath.Join(storagePath, key+".jpg")).To(BeARegularFile())

		// --- Select and confirm ---
		Expect(request(http.MethodPut, "/api/sessions/"+key+"/participants/alice/items/0", `{"count": 2}`).StatusCode).To(Equal(http.StatusOK))
		Expect(request(http.MethodPost, "/api/sessions/"+key+"/participants/bob/items/1/increment", "").StatusCode).To(Equal(http.StatusOK))
		Expect(request(http.MethodPost, "/api/sessions/"+key+"/participants/bob/items/2/increment", "").StatusCode).To(Equal(http.StatusOK))
		Expect(request(http.MethodPost, "/api/sessions/"+key+"/participants/alice/confirm", "").StatusCode).To(Equal(http.StatusOK))
		Expect(request(http.MethodPost, "/api/sessions/"+key+"/participants/bob/confirm", "").StatusCode).To(Equal(http.StatusOK))

		// --- Persisted state ---
		sess, err := store.Get(key)
		Expect(err).NotTo(HaveOccurred())
		Expect(sess.Selections["bob"]).To(Equal(receipt.Selection{1: 1, 2: 1}))
		Expect(sess.Results["alice"].Total.StringFixed(2)).To(Equal("6.60"))
		Expect(sess.Results["bob"].Total.StringFixed(2)).To(Equal("39.49"))

		// --- Results ---
		summary, err := service.Results(key)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Recomputed).To(BeFalse())
		Expect(summary.Participants[0].Participant).To(Equal("bob"))
		Expect(summary.Total.StringFixed(2)).To(Equal("46.09"))

		// --- Delete ---
		Expect(request(http.MethodDelete, "/api/sessions/"+key, "").StatusCode).To(Equal(http.StatusNoContent))
		Expect(request(http.MethodGet, "/api/sessions/"+key, "").StatusCode).To(Equal(http.StatusNotFound))
		Expect(filepath.Join(storagePath, key+".jpg")).NotTo(BeAnExistingFile())
	})
})
