package http

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tu-usuario/facturacion-pro/internal/application/scraping"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// fakeConn implementa wsConn y registra lo que se le escribe.
type fakeConn struct {
	escritos []any
	fallar   bool
	cerrado  bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	if f.fallar {
		return errors.New("conexión rota")
	}
	f.escritos = append(f.escritos, v)
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) { return 0, nil, errors.New("cerrado") }
func (f *fakeConn) Close() error                      { f.cerrado = true; return nil }

func TestGateway_BroadcastLlegaATodos(t *testing.T) {
	g := NewGateway(logger.NewNop())
	c1, c2 := &fakeConn{}, &fakeConn{}
	g.registrar(c1)
	g.registrar(c2)

	g.Broadcast("job-1", scraping.StateCompleted, map[string]string{"numeroComprobante": "E001-206"})

	require.Len(t, c1.escritos, 1)
	require.Len(t, c2.escritos, 1)

	evento, ok := c1.escritos[0].(scrapingEvent)
	require.True(t, ok)
	assert.Equal(t, "scraping_status", evento.Type)
	assert.Equal(t, "job-1", evento.JobID)
	assert.Equal(t, "completed", evento.State)
}

func TestGateway_ClienteRotoSeDescarta(t *testing.T) {
	g := NewGateway(logger.NewNop())
	sano, roto := &fakeConn{}, &fakeConn{fallar: true}
	g.registrar(sano)
	g.registrar(roto)

	g.Broadcast("job-1", scraping.StateActive, nil)
	g.Broadcast("job-1", scraping.StateCompleted, nil)

	assert.Len(t, sano.escritos, 2, "el cliente sano recibe todos los eventos")
	assert.True(t, roto.cerrado, "el cliente roto se cierra al primer error")
	assert.Empty(t, roto.escritos)
}

func TestGateway_DesconectarEsIdempotente(t *testing.T) {
	g := NewGateway(logger.NewNop())
	c := &fakeConn{}
	g.registrar(c)

	g.desconectar(c)
	g.desconectar(c)

	g.Broadcast("job-1", scraping.StateActive, nil)
	assert.Empty(t, c.escritos, "un cliente desconectado no recibe eventos")
}
