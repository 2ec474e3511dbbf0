package billing_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/facturacion-pro/internal/application/billing"
	"github.com/tu-usuario/facturacion-pro/internal/application/dto"
	"github.com/tu-usuario/facturacion-pro/internal/domain"
	"github.com/tu-usuario/facturacion-pro/internal/domain/entity"
	"github.com/tu-usuario/facturacion-pro/internal/domain/factura"
	"github.com/tu-usuario/facturacion-pro/internal/domain/repository"
	"github.com/tu-usuario/facturacion-pro/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes en memoria
//
// memStore implementa los tres repositorios y el tx runner sobre mapas con un
// mutex global: suficiente para verificar la semántica del upsert (creación,
// fusión, reemplazo en bloque, máquina de estados) sin Postgres.
// ──────────────────────────────────────────────────────────────────────────────

type memStore struct {
	mu        sync.Mutex
	suppliers map[string]*entity.Supplier
	invoices  map[string]*entity.Invoice // clave: numero_comprobante
	items     map[string][]*entity.InvoiceItem
	docs      map[string]*entity.ElectronicDocument

	// clavesSerializadas registra la clave de cada RunFacturacion, para
	// verificar que toda escritura de un comprobante pasa por la misma
	// clave de serialización.
	clavesSerializadas []string

	failReplaceItems bool
	failUpdateEstado bool
}

func newMemStore() *memStore {
	return &memStore{
		suppliers: make(map[string]*entity.Supplier),
		invoices:  make(map[string]*entity.Invoice),
		items:     make(map[string][]*entity.InvoiceItem),
		docs:      make(map[string]*entity.ElectronicDocument),
	}
}

var errStoreRoto = errors.New("store roto")

func (s *memStore) RunFacturacion(_ context.Context, clave string, fn func(
	repository.SupplierRepository,
	repository.InvoiceRepository,
	repository.DocumentRepository,
) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clavesSerializadas = append(s.clavesSerializadas, clave)
	return fn(memSupplierRepo{s}, s, memDocRepo{s})
}

// SupplierRepository (tipo aparte: Upsert colisiona con DocumentRepository)

type memSupplierRepo struct{ s *memStore }

func (r memSupplierRepo) Upsert(sup *entity.Supplier) error {
	r.s.suppliers[sup.RUC] = sup
	return nil
}

func (r memSupplierRepo) GetByRUC(ruc string) (*entity.Supplier, error) {
	return r.s.suppliers[ruc], nil
}

// InvoiceRepository

func (s *memStore) Create(inv *entity.Invoice) error {
	s.invoices[inv.NumeroComprobante] = inv
	return nil
}

func (s *memStore) UpdateHeader(inv *entity.Invoice) error {
	s.invoices[inv.NumeroComprobante] = inv
	return nil
}

func (s *memStore) UpdateEstado(id string, estado factura.Estado) error {
	if s.failUpdateEstado {
		return errStoreRoto
	}
	for _, inv := range s.invoices {
		if inv.ID == id {
			inv.Estado = estado
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memStore) GetByID(id string) (*entity.Invoice, error) {
	for _, inv := range s.invoices {
		if inv.ID == id {
			return inv, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetByNumeroComprobante(numero string) (*entity.Invoice, error) {
	return s.invoices[numero], nil
}

func (s *memStore) ListByUser(userID string) ([]*entity.Invoice, error) {
	var out []*entity.Invoice
	for _, inv := range s.invoices {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *memStore) ReplaceItems(invoiceID string, items []*entity.InvoiceItem) error {
	if s.failReplaceItems {
		return errStoreRoto
	}
	s.items[invoiceID] = items
	return nil
}

func (s *memStore) GetItems(invoiceID string) ([]*entity.InvoiceItem, error) {
	return s.items[invoiceID], nil
}

// DocumentRepository

type memDocRepo struct{ s *memStore }

func (r memDocRepo) Upsert(doc *entity.ElectronicDocument) error {
	r.s.docs[doc.InvoiceID] = doc
	return nil
}

func (r memDocRepo) GetByInvoiceID(invoiceID string) (*entity.ElectronicDocument, error) {
	return r.s.docs[invoiceID], nil
}

func newUpsertUC(store *memStore) *billing.UpsertInvoiceUseCase {
	return billing.NewUpsertInvoiceUseCase(store, logger.NewNop())
}

// ── Creación y fusión ─────────────────────────────────────────────────────────

func TestUpsert_CreaEnConsultado(t *testing.T) {
	store := newMemStore()
	uc := newUpsertUC(store)

	res, err := uc.Upsert(context.Background(), billing.UpsertInvoiceInput{
		Origen:      billing.OrigenOCR,
		UserID:      "u1",
		SupplierRUC: "20100070970",
		Serie:       "F001",
		Numero:      "103077",
	})
	require.NoError(t, err)
	assert.True(t, res.Creada, "la primera escritura de una clave debe crear la fila")
	assert.Equal(t, "F001-00103077", res.NumeroComprobante)
	assert.Equal(t, factura.EstadoConsultado, res.Estado)

	sup := store.suppliers["20100070970"]
	require.NotNil(t, sup, "el proveedor debe upsertarse antes que la factura")
	assert.Equal(t, "Proveedor 20100070970", sup.RazonSocial,
		"sin razón social se usa el placeholder derivado del RUC")
}

func TestUpsert_IdempotentePorClaveNormalizada(t *testing.T) {
	store := newMemStore()
	uc := newUpsertUC(store)
	ctx := context.Background()

	res1, err := uc.Upsert(ctx, billing.UpsertInvoiceInput{
		Origen: billing.OrigenOCR, UserID: "u1",
		SupplierRUC: "20100070970", Serie: "F001", Numero: "103077",
	})
	require.NoError(t, err)

	// Misma identidad escrita con otra grafía: serie corta y ceros a la
	// izquierda en el correlativo.
	res2, err := uc.Upsert(ctx, billing.UpsertInvoiceInput{
		Origen: billing.OrigenOCR, UserID: "u1",
		SupplierRUC: "20100070970", Serie: "f1", Numero: "000103077",
	})
	require.NoError(t, err)

	assert.True(t, res1.Creada)
	assert.False(t, res2.Creada, "la segunda escritura de la misma clave debe fusionar, no crear")
	assert.Equal(t, res1.InvoiceID, res2.InvoiceID)
	assert.Len(t, store.invoices, 1, "ambas grafías deben resolver a una sola fila")
}

func TestUpsert_EscribeBajoLaClaveNormalizada(t *testing.T) {
	store := newMemStore()
	uc := newUpsertUC(store)

	_, err := uc.Upsert(context.Background(), billing.UpsertInvoiceInput{
		Origen: billing.OrigenOCR, UserID: "u1",
		SupplierRUC: "20100070970", Serie: "f1", Numero: "000103077",
	})
	require.NoError(t, err)

	require.Len(t, store.clavesSerializadas, 1,
		"todas las escrituras del upsert ocurren dentro de una sola transacción")
	assert.Equal(t, "F001-00103077", store.clavesSerializadas[0],
		"la transacción se serializa por la clave normalizada, no por la grafía recibida")
}

func TestUpsert_ConcurrenteMismaClaveCreaUnaSolaFila(t *testing.T) {
	store := newMemStore()
	uc := newUpsertUC(store)

	grafias := []struct{ serie, numero string }{
		{"F001", "103077"},
		{"f1", "000103077"},
		{"F001", "00103077"},
		{"f001", "0103077"},
	}

	var wg sync.WaitGroup
	creadas := make([]bool, len(grafias))
	for i, g := range grafias {
		wg.Add(1)
		go func(i int, serie, numero string) {
			defer wg.Done()
			res, err := uc.Upsert(context.Background(), billing.UpsertInvoiceInput{
				Origen: billing.OrigenOCR, UserID: "u1",
				SupplierRUC: "20100070970", Serie: serie, Numero: numero,
			})
			if assert.NoError(t, err) {
				creadas[i] = res.Creada
			}
		}(i, g.serie, g.numero)
	}
	wg.Wait()

	assert.Len(t, store.invoices, 1, "todas las grafías concurrentes resuelven a una sola fila")

	total := 0
	for _, c := range creadas {
		if c {
			total++
		}
	}
	assert.Equal(t, 1, total, "exactamente un upsert concurrente crea; el resto fusiona")

	for _, clave := range store.clavesSerializadas {
		assert.Equal(t, "F001-00103077", clave,
			"toda escritura de la misma identidad compite por la misma clave de serialización")
	}
}

func TestUpsert_CreacionConItemsQuedaConsultado(t *testing.T) {
	store := newMemStore()
	uc := newUpsertUC(store)

	res, err := uc.Upsert(context.Background(), billing.UpsertInvoiceInput{
		Origen:      billing.OrigenCargaMasiva,
		UserID:      "u1",
		SupplierRUC: "20100070970",
		Serie:       "F001",
		Numero:      "55",
		Items: []dto.ProductoInput{
			{Descripcion: "GASOHOL 90", Cantidad: decimal.NewFromInt(10)},
			{Descripcion: "DIESEL B5", Cantidad: decimal.NewFromInt(5)},
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Creada)
	assert.Equal(t, factura.EstadoConsultado, res.Estado,
		"en el alta las líneas quedan adjuntas pero el estado inicial no se mueve")
	assert.Len(t, store.items[res.InvoiceID], 2)
}

// ── Reemplazo en bloque y promociones ─────────────────────────────────────────

func TestUpsert_ScrapingSobreExistenteReemplazaYRegistra(t *testing.T) {
	store := newMemStore()
	uc := newUpsertUC(store)
	ctx := context.Background()

	// Alta por carga masiva con dos líneas.
	res1, err := uc.Upsert(ctx, billing.UpsertInvoiceInput{
		Origen: billing.OrigenCargaMasiva, UserID: "u1",
		SupplierRUC: "20100070970", Serie: "F001", Numero: "200",
		Items: []dto.ProductoInput{
			{Descripcion: "linea vieja A"},
			{Descripcion: "linea vieja B"},
		},
	})
	require.NoError(t, err)

	// Llega el scraping con el detalle oficial: una sola línea.
	res2, err := uc.Upsert(ctx, billing.UpsertInvoiceInput{
		Origen: billing.OrigenScraping, UserID: "u1",
		SupplierRUC: "20100070970", Serie: "F001", Numero: "200",
		Items: []dto.ProductoInput{
			{Descripcion: "GASOHOL 90 PLUS", Cantidad: decimal.NewFromInt(3)},
		},
	})
	require.NoError(t, err)

	assert.False(t, res2.Creada)
	assert.Equal(t, factura.EstadoRegistrado, res2.Estado,
		"carga masiva y scraping sobre una factura existente confirman REGISTRADO")

	items := store.items[res1.InvoiceID]
	require.Len(t, items, 1, "el reemplazo de líneas es en bloque, nunca merge")
	assert.Equal(t, "GASOHOL 90 PLUS", items[0].Descripcion)
}

func TestUpsert_ItemsNilNoTocaLineas(t *testing.T) {
	store := newMemStore()
	uc := newUpsertUC(store)
	ctx := context.Background()

	res1, err := uc.Upsert(ctx, billing.UpsertInvoiceInput{
		Origen: billing.OrigenCargaMasiva, UserID: "u1",
		SupplierRUC: "20100070970", Serie: "F001", Numero: "300",
		Items: []dto.ProductoInput{{Descripcion: "unica linea"}},
	})
	require.NoError(t, err)

	// Un OCR posterior del mismo comprobante no trae líneas.
	_, err = uc.Upsert(ctx, billing.UpsertInvoiceInput{
		Origen: billing.OrigenOCR, UserID: "u1",
		SupplierRUC: "20100070970", Serie: "F001", Numero: "300",
	})
	require.NoError(t, err)

	assert.Len(t, store.items[res1.InvoiceID], 1,
		"Items nil significa no tocar las líneas existentes")
}

func TestUpsert_GuardaAntiRegresion(t *testing.T) {
	store := newMemStore()
	uc := newUpsertUC(store)
	ctx := context.Background()

	res, err := uc.Upsert(ctx, billing.UpsertInvoiceInput{
		Origen: billing.OrigenCargaMasiva, UserID: "u1",
		SupplierRUC: "20100070970", Serie: "F001", Numero: "400",
	})
	require.NoError(t, err)

	// La factura llega al estado terminal.
	require.NoError(t, store.UpdateEstado(res.InvoiceID, factura.EstadoContabilizado))

	// Un productor tardío propone un estado menor: se ignora.
	res2, err := uc.Upsert(ctx, billing.UpsertInvoiceInput{
		Origen: billing.OrigenOCR, UserID: "u1",
		SupplierRUC: "20100070970", Serie: "F001", Numero: "400",
		EstadoPropuesto: factura.EstadoConDetalle,
	})
	require.NoError(t, err)
	assert.Equal(t, factura.EstadoContabilizado, res2.Estado,
		"una propuesta menor al estado actual nunca regresa la factura")
}

// ── Validación y errores ──────────────────────────────────────────────────────

func TestUpsert_RechazaEntradaSinClave(t *testing.T) {
	store := newMemStore()
	uc := newUpsertUC(store)
	ctx := context.Background()

	_, err := uc.Upsert(ctx, billing.UpsertInvoiceInput{
		Origen: billing.OrigenOCR, UserID: "u1",
		SupplierRUC: "", Serie: "F001", Numero: "1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "sin RUC no hay escritura")

	_, err = uc.Upsert(ctx, billing.UpsertInvoiceInput{
		Origen: billing.OrigenOCR, UserID: "u1",
		SupplierRUC: "20100070970", Serie: "F001", Numero: "   ",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "sin número no hay escritura")

	assert.Empty(t, store.invoices, "la validación debe ocurrir antes de cualquier escritura")
	assert.Empty(t, store.suppliers)
}

func TestUpsert_ErrorDePersistenciaSePropaga(t *testing.T) {
	store := newMemStore()
	store.failReplaceItems = true
	uc := newUpsertUC(store)

	_, err := uc.Upsert(context.Background(), billing.UpsertInvoiceInput{
		Origen: billing.OrigenScraping, UserID: "u1",
		SupplierRUC: "20100070970", Serie: "F001", Numero: "500",
		Items: []dto.ProductoInput{{Descripcion: "x"}},
	})
	assert.ErrorIs(t, err, errStoreRoto,
		"un fallo del almacén se propaga al caller, no se traga")
}

// ── Documento electrónico ─────────────────────────────────────────────────────

func TestUpsert_DocumentoIndependienteDelEstado(t *testing.T) {
	store := newMemStore()
	uc := newUpsertUC(store)
	ctx := context.Background()

	res, err := uc.Upsert(ctx, billing.UpsertInvoiceInput{
		Origen: billing.OrigenScraping, UserID: "u1",
		SupplierRUC: "20100070970", Serie: "E001", Numero: "206",
		Documento: &entity.ElectronicDocument{
			XML: []byte("<Invoice/>"),
			PDF: []byte("%PDF-1.4"),
		},
	})
	require.NoError(t, err)

	doc := store.docs[res.InvoiceID]
	require.NotNil(t, doc, "el documento se guarda aunque el estado no cambie")
	assert.NotEmpty(t, doc.ID)
	assert.False(t, doc.ReceivedAt.IsZero())
	assert.Equal(t, "E001-00000206", res.NumeroComprobante)
}
