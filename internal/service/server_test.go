package service

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/quarkcity/meal-ledger/internal/pipeline"
)

var _ = Describe("Server", func() {
	var (
		runner      *Runner
		progress    *pipeline.ProgressStore
		server      *Server
		auth        BasicAuth
		lister      *mockLister
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP, server.ServeHTTP, server.ServeHTTP)
	}

	BeforeEach(func() {
		progress = pipeline.NewProgressStore()
		runner = NewRunner(
			&mockSource{},
			&mockScheduler{result: pipeline.Result{Processed: 2}},
			&mockStaging{},
			&mockRosterSheet{},
			&mockReconciler{},
			&mockMerger{},
			progress,
		)
		auth = BasicAuth{}
		lister = &mockLister{names: []string{"jdoe", "rpatel"}}
		server = NewServerWithMux(runner, lister, auth, "October 2025", http.NewServeMux())
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	postProcess := func(body string) *http.Response {
		var reader io.Reader
		if body != "" {
			reader = bytes.NewBufferString(body)
		}
		req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/process", reader)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("handleProcess", func() {
		It("should accept a run request and return a job id", func() {
			resp := postProcess(`{"month": "October 2025"}`)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			var out map[string]string
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			Expect(out["job_id"]).NotTo(BeEmpty())
		})

		It("should register the job in the progress store", func() {
			resp := postProcess(`{"month": "October 2025"}`)
			defer resp.Body.Close()

			var out map[string]string
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())

			Eventually(func() bool {
				_, ok := runner.Progress(out["job_id"])
				return ok
			}).Should(BeTrue())
		})

		It("should fall back to the configured month for an empty body", func() {
			resp := postProcess("")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		})

		When("no month is configured or supplied", func() {
			BeforeEach(func() {
				server = NewServerWithMux(runner, lister, auth, "", http.NewServeMux())
				setupServer()
			})

			It("should return status Bad Request", func() {
				resp := postProcess("")
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the body is malformed", func() {
			It("should return status Bad Request", func() {
				resp := postProcess(`{"month": `)
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("request method is GET", func() {
			It("should return status Method Not Allowed", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/process")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
				resp.Body.Close()
			})
		})
	})

	Describe("handleProgress", func() {
		When("the job exists", func() {
			BeforeEach(func() {
				progress.Create("job-1")
				progress.Update("job-1", 45, "Processing OCR batch 2/3...")
			})

			It("should return the job status as JSON", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/process/progress/job-1")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var status pipeline.JobStatus
				Expect(json.NewDecoder(resp.Body).Decode(&status)).To(Succeed())
				Expect(status.Progress).To(Equal(45))
				Expect(status.Status).To(Equal("Processing OCR batch 2/3..."))
				Expect(status.Completed).To(BeFalse())
			})
		})

		When("the job does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/process/progress/missing")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleUserCount", func() {
		It("should return the number of employee folders", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/users/count")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out map[string]int
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			Expect(out["user_count"]).To(Equal(2))
		})

		When("the source cannot list employees", func() {
			BeforeEach(func() {
				lister.err = errors.New("drive unavailable")
			})

			It("should return status Internal Server Error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/users/count")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})

		When("the source does not support listing", func() {
			BeforeEach(func() {
				server = NewServerWithMux(runner, nil, auth, "October 2025", http.NewServeMux())
				setupServer()
			})

			It("should return status Not Implemented", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/users/count")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotImplemented))
				resp.Body.Close()
			})
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
			server = NewServerWithMux(runner, lister, auth, "October 2025", http.NewServeMux())
			setupServer()
		})

		It("should reject requests without credentials", func() {
			resp := postProcess(`{"month": "October 2025"}`)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("should accept requests with valid credentials", func() {
			req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/process", bytes.NewBufferString(`{"month": "October 2025"}`))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		})

		It("should reject requests with wrong credentials", func() {
			req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/process", bytes.NewBufferString(`{"month": "October 2025"}`))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:wrong")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})
})
