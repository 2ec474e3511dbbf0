package sunat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/tu-usuario/facturacion-pro/internal/application/scraping"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

const (
	solLoginURL    = "https://e-menu.sunat.gob.pe/cl-ti-itmenu/MenuInternet.htm"
	solConsultaURL = "https://e-factura.sunat.gob.pe/ol-fe-1001-consulta/consulta"

	pasoTimeout = 30 * time.Second
)

var _ scraping.Retriever = (*PortalRetriever)(nil)

// PortalRetriever descarga los archivos oficiales de un comprobante desde el
// portal SOL con un Chrome headless. Cada Retrieve abre un navegador limpio:
// la sesión SOL caduca rápido y compartirla entre jobs produce fallos
// intermitentes mucho más caros que el arranque del proceso.
type PortalRetriever struct {
	headless bool
	log      *logger.Logger
}

// NewPortalRetriever construye el retriever. headless en false deja ver el
// navegador, útil para depurar cambios del portal.
func NewPortalRetriever(headless bool, log *logger.Logger) *PortalRetriever {
	return &PortalRetriever{headless: headless, log: log}
}

// Retrieve inicia sesión, busca el comprobante y baja XML, PDF y CDR.
func (p *PortalRetriever) Retrieve(ctx context.Context, req scraping.RetrieveRequest) (*scraping.RetrievedDocument, error) {
	downloadDir, err := os.MkdirTemp("", "sol-descargas-*")
	if err != nil {
		return nil, &scraping.RetrievalError{Kind: scraping.FailureNavigation, Msg: "crear directorio de descargas", Err: err}
	}
	defer os.RemoveAll(downloadDir)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // /dev/shm chico en Docker
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("lang", "es-PE"),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	descargas := watchDownloads(browserCtx)

	if err := p.login(browserCtx, req); err != nil {
		return nil, err
	}
	if err := p.buscarComprobante(browserCtx, req); err != nil {
		return nil, err
	}

	doc := &scraping.RetrievedDocument{SunatStatus: "ACEPTADO"}
	// Los tres botones de descarga comparten el patrón de tooltip del portal.
	// Solo el XML es obligatorio: sin él no hay nada que interpretar; el PDF
	// y el CDR enriquecen el documento pero su ausencia no invalida el job.
	for _, d := range []struct {
		tooltip   string
		dest      *[]byte
		requerido bool
	}{
		{"Descargar XML", &doc.XML, true},
		{"Descargar PDF", &doc.PDF, false},
		{"Descargar CDR", &doc.CDR, false},
	} {
		data, err := p.descargar(browserCtx, descargas, downloadDir, d.tooltip)
		if err != nil {
			if d.requerido {
				return nil, err
			}
			p.log.Warn().Str("archivo", d.tooltip).Err(err).Msg("descarga opcional fallida")
			continue
		}
		*d.dest = data
	}

	if len(doc.XML) == 0 {
		return nil, &scraping.RetrievalError{Kind: scraping.FailureDownload, Msg: "el portal no entregó el XML"}
	}
	return doc, nil
}

func (p *PortalRetriever) login(ctx context.Context, req scraping.RetrieveRequest) error {
	stepCtx, cancel := context.WithTimeout(ctx, pasoTimeout)
	defer cancel()

	err := chromedp.Run(stepCtx,
		chromedp.Navigate(solLoginURL),
		chromedp.WaitVisible(`#txtRuc`, chromedp.ByID),
		chromedp.SendKeys(`#txtRuc`, req.RUC, chromedp.ByID),
		chromedp.SendKeys(`#txtUsuario`, req.UsuarioSOL, chromedp.ByID),
		chromedp.SendKeys(`#txtContrasena`, req.ClaveSOL, chromedp.ByID),
		chromedp.Click(`#btnAceptar`, chromedp.ByID),
	)
	if err != nil {
		return &scraping.RetrievalError{Kind: scraping.FailureLogin, Msg: "formulario de login SOL", Err: err}
	}

	// El portal intercala avisos y encuestas tras el login; se cierran si
	// aparecen y se sigue si no.
	dismissCtx, cancelDismiss := context.WithTimeout(ctx, 5*time.Second)
	defer cancelDismiss()
	_ = chromedp.Run(dismissCtx,
		chromedp.Click(`.modal-footer button, #btnCerrar`, chromedp.ByQuery),
	)

	// Sin el menú principal visible la credencial fue rechazada.
	verifyCtx, cancelVerify := context.WithTimeout(ctx, pasoTimeout)
	defer cancelVerify()
	if err := chromedp.Run(verifyCtx, chromedp.WaitVisible(`#divOpciones, #menuPrincipal`, chromedp.ByQuery)); err != nil {
		return &scraping.RetrievalError{Kind: scraping.FailureLogin, Msg: "credencial SOL rechazada", Err: err}
	}
	return nil
}

func (p *PortalRetriever) buscarComprobante(ctx context.Context, req scraping.RetrieveRequest) error {
	stepCtx, cancel := context.WithTimeout(ctx, pasoTimeout)
	defer cancel()

	err := chromedp.Run(stepCtx,
		chromedp.Navigate(solConsultaURL),
		chromedp.WaitVisible(`#rucEmisor`, chromedp.ByID),
		chromedp.SendKeys(`#rucEmisor`, req.RUCEmisor, chromedp.ByID),
		chromedp.SendKeys(`#serie`, req.Serie, chromedp.ByID),
		chromedp.SendKeys(`#numero`, req.Numero, chromedp.ByID),
		chromedp.Click(`#btnBuscar`, chromedp.ByID),
	)
	if err != nil {
		return &scraping.RetrievalError{Kind: scraping.FailureNavigation, Msg: "formulario de consulta", Err: err}
	}

	resultCtx, cancelResult := context.WithTimeout(ctx, pasoTimeout)
	defer cancelResult()
	if err := chromedp.Run(resultCtx, chromedp.WaitVisible(`table.rwdTable tbody tr`, chromedp.ByQuery)); err != nil {
		return &scraping.RetrievalError{
			Kind: scraping.FailureNotFound,
			Msg:  fmt.Sprintf("comprobante %s-%s de %s sin resultados", req.Serie, req.Numero, req.RUCEmisor),
			Err:  err,
		}
	}
	return nil
}

// descargar pulsa el botón identificado por su tooltip y espera el archivo.
func (p *PortalRetriever) descargar(ctx context.Context, descargas *downloadWatcher, dir, tooltip string) ([]byte, error) {
	stepCtx, cancel := context.WithTimeout(ctx, pasoTimeout)
	defer cancel()

	selector := fmt.Sprintf(`a[title=%q], button[title=%q]`, tooltip, tooltip)
	err := chromedp.Run(stepCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(dir).WithEventsEnabled(true),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return nil, &scraping.RetrievalError{Kind: scraping.FailureDownload, Msg: tooltip, Err: err}
	}

	guid, err := descargas.wait(stepCtx)
	if err != nil {
		return nil, &scraping.RetrievalError{Kind: scraping.FailureDownload, Msg: tooltip + ": descarga no completada", Err: err}
	}

	data, err := os.ReadFile(filepath.Join(dir, guid))
	if err != nil {
		return nil, &scraping.RetrievalError{Kind: scraping.FailureDownload, Msg: tooltip + ": leer archivo", Err: err}
	}
	p.log.Debug().Str("tooltip", tooltip).Int("bytes", len(data)).Msg("archivo descargado")
	return data, nil
}

// downloadWatcher acumula las descargas completadas que reporta el navegador.
type downloadWatcher struct {
	mu    sync.Mutex
	done  []string
	avisa chan struct{}
}

// watchDownloads registra el listener de eventos de descarga del target.
func watchDownloads(ctx context.Context) *downloadWatcher {
	w := &downloadWatcher{avisa: make(chan struct{}, 16)}
	chromedp.ListenTarget(ctx, func(ev any) {
		if e, ok := ev.(*browser.EventDownloadProgress); ok && e.State == browser.DownloadProgressStateCompleted {
			w.mu.Lock()
			w.done = append(w.done, e.GUID)
			w.mu.Unlock()
			select {
			case w.avisa <- struct{}{}:
			default:
			}
		}
	})
	return w
}

// wait devuelve el GUID de la siguiente descarga completada.
func (w *downloadWatcher) wait(ctx context.Context) (string, error) {
	for {
		w.mu.Lock()
		if len(w.done) > 0 {
			guid := w.done[0]
			w.done = w.done[1:]
			w.mu.Unlock()
			return guid, nil
		}
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-w.avisa:
		}
	}
}
