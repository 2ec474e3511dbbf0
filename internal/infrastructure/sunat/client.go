package sunat

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tu-usuario/facturacion-pro/pkg/config"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
	"golang.org/x/text/encoding/charmap"
)

const (
	// estadoTerminado codEstadoProceso del ticket cuando el archivo está listo.
	estadoTerminado = "06"

	pollEvery    = 3 * time.Second
	pollAttempts = 60
)

// Client cliente del API SIRE (Sistema Integrado de Registros Electrónicos).
// Descarga la propuesta de compras de un periodo: pide un ticket de
// exportación, espera a que el proceso termine y baja el ZIP resultante.
type Client struct {
	cfg  config.SUNATConfig
	http *http.Client
	log  *logger.Logger

	mu    sync.Mutex
	token string
	// expiresAt con 60s de margen: un token que vence a mitad de un poll
	// largo produce 401 difíciles de distinguir de credenciales malas.
	expiresAt time.Time
}

// NewClient construye el cliente SIRE.
func NewClient(cfg config.SUNATConfig, log *logger.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log,
	}
}

// DescargarPropuesta baja el TXT de la propuesta de compras del periodo
// (formato YYYYMM). El TXT viene en Latin-1 dentro de un ZIP; se devuelve
// ya decodificado a UTF-8.
func (c *Client) DescargarPropuesta(ctx context.Context, periodo string) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	ticket, err := c.solicitarExportacion(ctx, token, periodo)
	if err != nil {
		return "", err
	}
	c.log.Info().Str("periodo", periodo).Str("ticket", ticket).Msg("exportación SIRE solicitada")

	nombreArchivo, err := c.esperarTicket(ctx, token, periodo, ticket)
	if err != nil {
		return "", err
	}

	zipData, err := c.descargarArchivo(ctx, token, nombreArchivo)
	if err != nil {
		return "", err
	}
	return extraerTXT(zipData)
}

// accessToken devuelve un token vigente, pidiendo uno nuevo solo cuando el
// cacheado expiró.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiresAt) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"password"},
		"scope":         {"https://api-sire.sunat.gob.pe"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"username":      {c.cfg.RUC + c.cfg.UsuarioSOL},
		"password":      {c.cfg.ClaveSOL},
	}
	endpoint := fmt.Sprintf("%s/%s/oauth2/token/", c.cfg.AuthBaseURL, c.cfg.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token SIRE: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token SIRE: status %d: %s", resp.StatusCode, body)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("token SIRE: %w", err)
	}

	c.token = out.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(out.ExpiresIn-60) * time.Second)
	return c.token, nil
}

// solicitarExportacion pide la generación del archivo de la propuesta y
// devuelve el número de ticket.
func (c *Client) solicitarExportacion(ctx context.Context, token, periodo string) (string, error) {
	endpoint := fmt.Sprintf(
		"%s/v1/contribuyente/migeigv/libros/rce/propuesta/web/propuesta/%s/exportapropuesta?codTipoArchivo=0&codOrigenEnvio=2",
		c.cfg.SIREBaseURL, periodo,
	)

	var out struct {
		NumTicket string `json:"numTicket"`
	}
	if err := c.getJSON(ctx, token, endpoint, &out); err != nil {
		return "", fmt.Errorf("exportar propuesta: %w", err)
	}
	if out.NumTicket == "" {
		return "", fmt.Errorf("exportar propuesta: respuesta sin ticket")
	}
	return out.NumTicket, nil
}

// esperarTicket consulta el estado del ticket hasta que el proceso termina y
// devuelve el nombre del archivo generado.
func (c *Client) esperarTicket(ctx context.Context, token, periodo, ticket string) (string, error) {
	endpoint := fmt.Sprintf(
		"%s/v1/contribuyente/migeigv/libros/consultaestadotickets?perIni=%s&perFin=%s&page=1&perPage=20&numTicket=%s",
		c.cfg.SIREBaseURL, periodo, periodo, ticket,
	)

	for i := 0; i < pollAttempts; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollEvery):
		}

		var out struct {
			Registros []struct {
				CodEstadoProceso string `json:"codEstadoProceso"`
				Archivos         []struct {
					NombreArchivoReporte string `json:"nombreArchivoReporte"`
				} `json:"archivoReporte"`
			} `json:"registros"`
		}
		if err := c.getJSON(ctx, token, endpoint, &out); err != nil {
			c.log.Warn().Str("ticket", ticket).Err(err).Msg("consulta de ticket falló, reintentando")
			continue
		}
		if len(out.Registros) == 0 {
			continue
		}
		reg := out.Registros[0]
		if reg.CodEstadoProceso != estadoTerminado {
			continue
		}
		if len(reg.Archivos) == 0 {
			return "", fmt.Errorf("ticket %s terminado sin archivo", ticket)
		}
		return reg.Archivos[0].NombreArchivoReporte, nil
	}
	return "", fmt.Errorf("ticket %s no terminó tras %d consultas", ticket, pollAttempts)
}

func (c *Client) descargarArchivo(ctx context.Context, token, nombre string) ([]byte, error) {
	endpoint := fmt.Sprintf(
		"%s/v1/contribuyente/migeigv/libros/descargaarchivoreporte?nomArchivoReporte=%s&codTipoArchivoReporte=01&codLibro=080000",
		c.cfg.SIREBaseURL, url.QueryEscape(nombre),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("descargar reporte: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("descargar reporte: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) getJSON(ctx context.Context, token, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// extraerTXT saca la primera entrada .txt del ZIP y la decodifica de Latin-1
// (la codificación con la que SUNAT genera los reportes) a UTF-8.
func extraerTXT(zipData []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return "", fmt.Errorf("abrir zip del reporte: %w", err)
	}
	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".txt") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("abrir %s: %w", f.Name, err)
		}
		defer rc.Close()

		raw, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("leer %s: %w", f.Name, err)
		}
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("decodificar %s: %w", f.Name, err)
		}
		return string(decoded), nil
	}
	return "", fmt.Errorf("el zip del reporte no contiene ningún .txt")
}
