package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/selfcustody/krux-installer/internal/download"
	kerrors "github.com/selfcustody/krux-installer/internal/errors"
	"github.com/selfcustody/krux-installer/internal/locator"
	"github.com/selfcustody/krux-installer/internal/path"
	"github.com/selfcustody/krux-installer/internal/platform"
	"github.com/selfcustody/krux-installer/internal/release"
	"github.com/selfcustody/krux-installer/internal/workflow"
)

func testEntry() locator.CacheEntry {
	r := release.New("v22.08.2")
	return locator.CacheEntry{
		Release:   r,
		LocalPath: "/home/runner/krux-installer/v22.08.2/krux-v22.08.2.zip",
		RemoteURL: r.RemoteURL(),
	}
}

func alreadyDownloaded(opts ...workflow.Option) *workflow.Machine {
	base := []workflow.Option{
		workflow.WithRemoteChecker(remoteAnswer(true, nil)),
		workflow.WithRefresher(fakeRefresher{exists: true}),
	}
	m := workflow.New(testEntry(), append(base, opts...)...)
	Expect(m.Check(context.Background())).To(Succeed())
	Expect(m.State()).To(Equal(workflow.StateAlreadyDownloaded))
	return m
}

var _ = Describe("Machine", func() {
	Describe("Check", func() {
		It("enters AlreadyDownloaded when the remote and local archives exist", func() {
			var transitions []workflow.State
			m := workflow.New(testEntry(),
				workflow.WithRemoteChecker(remoteAnswer(true, nil)),
				workflow.WithRefresher(fakeRefresher{exists: true}),
				workflow.WithObserver(func(_, to workflow.State) { transitions = append(transitions, to) }),
			)

			Expect(m.Check(context.Background())).To(Succeed())

			By("checking remote before local")
			Expect(transitions).To(Equal([]workflow.State{
				workflow.StateCheckingRemote,
				workflow.StateCheckingLocal,
				workflow.StateAlreadyDownloaded,
			}))
			Expect(m.Entry().SizeBytes).To(BeEquivalentTo(1024))
		})

		It("enters NotFound when only the remote archive exists", func() {
			m := workflow.New(testEntry(),
				workflow.WithRemoteChecker(remoteAnswer(true, nil)),
				workflow.WithRefresher(fakeRefresher{exists: false}),
			)

			Expect(m.Check(context.Background())).To(Succeed())
			Expect(m.State()).To(Equal(workflow.StateNotFound))
			Expect(m.Err()).NotTo(HaveOccurred())
		})

		It("fails without looking at the cache when the remote archive is gone", func() {
			m := workflow.New(testEntry(),
				workflow.WithRemoteChecker(remoteAnswer(false, nil)),
				workflow.WithRefresher(fakeRefresher{exists: true}),
			)

			err := m.Check(context.Background())
			Expect(errors.Is(err, kerrors.ErrNotFound)).To(BeTrue())
			Expect(m.State()).To(Equal(workflow.StateFailed))
			Expect(m.Err()).To(MatchError(err))

			var artifactErr *kerrors.ArtifactError
			Expect(errors.As(err, &artifactErr)).To(BeTrue())
			Expect(artifactErr.Scope).To(Equal(kerrors.ScopeRemote))
		})

		It("fails on an access error from the cache", func() {
			m := workflow.New(testEntry(),
				workflow.WithRemoteChecker(remoteAnswer(true, nil)),
				workflow.WithRefresher(fakeRefresher{err: kerrors.NewAccessDenied("/x", nil)}),
			)

			err := m.Check(context.Background())
			Expect(errors.Is(err, kerrors.ErrAccessDenied)).To(BeTrue())
			Expect(m.State()).To(Equal(workflow.StateFailed))
		})

		It("is accepted only once", func() {
			m := alreadyDownloaded()
			err := m.Check(context.Background())
			Expect(errors.Is(err, kerrors.ErrInvalidTransition)).To(BeTrue())
		})

		It("stops the remote check when aborted", func() {
			started := make(chan struct{})
			m := workflow.New(testEntry(), workflow.WithRemoteChecker(blockingRemote(started)))

			done := make(chan error, 1)
			go func() { done <- m.Check(context.Background()) }()

			Eventually(started).Should(BeClosed())
			Expect(m.Abort()).To(Succeed())

			var err error
			Eventually(done).Should(Receive(&err))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(m.State()).To(Equal(workflow.StateAborted))
			Expect(m.Decision()).To(Equal(workflow.DecisionAbort))
		})
	})

	Describe("decisions from AlreadyDownloaded", func() {
		It("proceeds with the cached archive", func() {
			m := alreadyDownloaded()
			Expect(m.Proceed()).To(Succeed())
			Expect(m.State()).To(Equal(workflow.StateProceeding))
			Expect(m.Decision()).To(Equal(workflow.DecisionProceedWithCached))
		})

		It("aborts", func() {
			m := alreadyDownloaded()
			Expect(m.Abort()).To(Succeed())
			Expect(m.State()).To(Equal(workflow.StateAborted))
			Expect(m.Decision()).To(Equal(workflow.DecisionAbort))
		})

		It("redownloads and proceeds with the refreshed entry", func() {
			fetcher := newSlowFetcher(download.NewGuard(), 0)
			m := alreadyDownloaded(workflow.WithFetcher(fetcher))

			Expect(m.Redownload(context.Background())).To(Succeed())
			Expect(m.State()).To(Equal(workflow.StateProceeding))
			Expect(m.Decision()).To(Equal(workflow.DecisionRedownload))
			Expect(m.Entry().SizeBytes).To(BeEquivalentTo(2048))
			Expect(m.Entry().LocalPath).To(Equal(testEntry().LocalPath))
		})

		It("fails with DownloadFailed when the fetch fails", func() {
			fetcher := newSlowFetcher(download.NewGuard(), 0)
			fetcher.err = errors.New("connection reset")
			m := alreadyDownloaded(workflow.WithFetcher(fetcher))

			err := m.Redownload(context.Background())
			Expect(errors.Is(err, kerrors.ErrDownloadFailed)).To(BeTrue())
			Expect(m.State()).To(Equal(workflow.StateFailed))
		})

		It("aborts a running redownload", func() {
			fetcher := newSlowFetcher(download.NewGuard(), time.Minute)
			m := alreadyDownloaded(workflow.WithFetcher(fetcher))

			done := make(chan error, 1)
			go func() { done <- m.Redownload(context.Background()) }()

			Eventually(fetcher.started).Should(BeClosed())
			Expect(m.State()).To(Equal(workflow.StateRedownloading))
			Expect(m.Decision()).To(Equal(workflow.DecisionRedownload))
			Expect(m.Abort()).To(Succeed())

			var err error
			Eventually(done).Should(Receive(&err))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(m.State()).To(Equal(workflow.StateAborted))
			Expect(m.Decision()).To(Equal(workflow.DecisionAbort))
		})

		It("records an abort when the caller cancels a redownload", func() {
			fetcher := newSlowFetcher(download.NewGuard(), time.Minute)
			m := alreadyDownloaded(workflow.WithFetcher(fetcher))

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- m.Redownload(ctx) }()

			Eventually(fetcher.started).Should(BeClosed())
			cancel()

			var err error
			Eventually(done).Should(Receive(&err))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(m.State()).To(Equal(workflow.StateAborted))
			Expect(m.Decision()).To(Equal(workflow.DecisionAbort))
		})

		DescribeTable("accepts exactly one decision",
			func(first func(*workflow.Machine) error) {
				fetcher := newSlowFetcher(download.NewGuard(), 0)
				m := alreadyDownloaded(workflow.WithFetcher(fetcher))
				Expect(first(m)).To(Succeed())

				for _, next := range []func() error{
					m.Proceed,
					m.Abort,
					func() error { return m.Redownload(context.Background()) },
					func() error { _, err := m.ShowDetails(); return err },
					m.CloseDetails,
					func() error { return m.Download(context.Background()) },
				} {
					Expect(errors.Is(next(), kerrors.ErrInvalidTransition)).To(BeTrue())
				}
			},
			Entry("proceed", func(m *workflow.Machine) error { return m.Proceed() }),
			Entry("redownload", func(m *workflow.Machine) error { return m.Redownload(context.Background()) }),
			Entry("abort", func(m *workflow.Machine) error { return m.Abort() }),
		)
	})

	Describe("details", func() {
		It("is re-enterable and always returns to AlreadyDownloaded", func() {
			m := alreadyDownloaded()

			for range 5 {
				details, err := m.ShowDetails()
				Expect(err).NotTo(HaveOccurred())
				Expect(m.State()).To(Equal(workflow.StateInspectingDetails))
				Expect(details).To(Equal(m.Details()))

				By("rejecting decisions while the overlay is open")
				Expect(errors.Is(m.Proceed(), kerrors.ErrInvalidTransition)).To(BeTrue())

				Expect(m.CloseDetails()).To(Succeed())
				Expect(m.State()).To(Equal(workflow.StateAlreadyDownloaded))
			}

			Expect(m.Decision()).To(Equal(workflow.DecisionNone))
			Expect(m.Proceed()).To(Succeed())
		})

		It("shows the provenance of the checked entry", func() {
			m := alreadyDownloaded()
			details, err := m.ShowDetails()
			Expect(err).NotTo(HaveOccurred())

			Expect(details.Title).To(Equal("Resource details"))
			Expect(details.Subtitle).To(Equal("v22.08.2/krux-v22.08.2.zip"))
			Expect(details.Fields()).To(Equal([]string{
				"Remote:\nhttps://github.com/selfcustody/krux/releases/download/v22.08.2/krux-v22.08.2.zip",
				"Local:\n/home/runner/krux-installer/v22.08.2/krux-v22.08.2.zip",
				"Description:\n" + release.Description,
			}))
		})
	})

	Describe("NotFound", func() {
		var m *workflow.Machine
		var fetcher *slowFetcher

		BeforeEach(func() {
			fetcher = newSlowFetcher(download.NewGuard(), 0)
			m = workflow.New(testEntry(),
				workflow.WithRemoteChecker(remoteAnswer(true, nil)),
				workflow.WithRefresher(fakeRefresher{}),
				workflow.WithFetcher(fetcher),
			)
			Expect(m.Check(context.Background())).To(Succeed())
		})

		It("downloads", func() {
			Expect(m.Download(context.Background())).To(Succeed())
			Expect(m.State()).To(Equal(workflow.StateProceeding))
			Expect(m.Decision()).To(Equal(workflow.DecisionDownload))
		})

		It("cannot proceed or redownload", func() {
			Expect(errors.Is(m.Proceed(), kerrors.ErrInvalidTransition)).To(BeTrue())
			Expect(errors.Is(m.Redownload(context.Background()), kerrors.ErrInvalidTransition)).To(BeTrue())
			_, err := m.ShowDetails()
			Expect(errors.Is(err, kerrors.ErrInvalidTransition)).To(BeTrue())
		})

		It("aborts", func() {
			Expect(m.Abort()).To(Succeed())
			Expect(m.State()).To(Equal(workflow.StateAborted))
		})
	})

	Describe("concurrent redownloads", func() {
		It("never runs two fetches of the same release at once", func() {
			guard := download.NewGuard()
			fetcher := newSlowFetcher(guard, 200*time.Millisecond)

			machines := make([]*workflow.Machine, 4)
			for i := range machines {
				machines[i] = alreadyDownloaded(workflow.WithFetcher(fetcher))
			}

			var wg sync.WaitGroup
			errs := make([]error, len(machines))
			for i, m := range machines {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					errs[i] = m.Redownload(context.Background())
				}()
			}
			wg.Wait()

			succeeded := 0
			for i, err := range errs {
				if err == nil {
					succeeded++
					Expect(machines[i].State()).To(Equal(workflow.StateProceeding))
					continue
				}
				Expect(errors.Is(err, kerrors.ErrConcurrentDownloadRejected)).To(BeTrue())
				By("leaving the rejected session free to decide again")
				Expect(machines[i].State()).To(Equal(workflow.StateAlreadyDownloaded))
				Expect(machines[i].Decision()).To(Equal(workflow.DecisionNone))
			}

			Expect(succeeded).To(BeNumerically(">=", 1))
			Expect(fetcher.overlap.Load()).To(BeZero())
			Expect(int(fetcher.calls.Load())).To(Equal(succeeded))
		})

		It("rejects a second session while the first is downloading through the real fetcher", func() {
			var archiveHits atomic.Int32
			release1 := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if filepath.Ext(r.URL.Path) == ".zip" {
					archiveHits.Add(1)
					<-release1
				}
				_, _ = w.Write([]byte("payload"))
			}))
			DeferCleanup(srv.Close)

			profile := platform.Profile{OS: hostOS(), Locale: platform.English, DocumentsRoot: GinkgoT().TempDir()}
			loc := locator.New(path.New(profile), locator.WithPublicKeyURL(srv.URL+"/main/selfcustody.pem"))
			r := release.New("v22.08.2", release.WithRemoteBaseURL(srv.URL))
			entry, err := loc.Locate(r)
			Expect(err).NotTo(HaveOccurred())

			fetcher := download.NewFetcher(loc)
			newSession := func() *workflow.Machine {
				m := workflow.New(entry,
					workflow.WithRemoteChecker(remoteAnswer(true, nil)),
					workflow.WithRefresher(fakeRefresher{exists: true}),
					workflow.WithFetcher(fetcher),
				)
				Expect(m.Check(context.Background())).To(Succeed())
				return m
			}
			first, second := newSession(), newSession()

			done := make(chan error, 1)
			go func() { done <- first.Redownload(context.Background()) }()
			Eventually(archiveHits.Load).Should(BeEquivalentTo(1))

			err = second.Redownload(context.Background())
			Expect(errors.Is(err, kerrors.ErrConcurrentDownloadRejected)).To(BeTrue())

			close(release1)
			Eventually(done).Should(Receive(BeNil()))
			Expect(first.State()).To(Equal(workflow.StateProceeding))
			Expect(first.Entry().Exists).To(BeTrue())
			Expect(archiveHits.Load()).To(BeEquivalentTo(1))
		})
	})
})

func hostOS() platform.OS {
	if filepath.Separator == '\\' {
		return platform.Win32
	}
	return platform.Linux
}
