package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"winsbygroup.com/keyverify/internal/binding"
	"winsbygroup.com/keyverify/internal/canonical"
	"winsbygroup.com/keyverify/internal/keycheck"
	"winsbygroup.com/keyverify/internal/licerr"
	"winsbygroup.com/keyverify/internal/logging"
	"winsbygroup.com/keyverify/internal/store"
)

type Handler struct {
	Checkers      map[canonical.SignMethod]*keycheck.Checker
	DefaultMethod canonical.SignMethod
	StoreService  *store.Service
	Log           *zap.Logger

	validate *validator.Validate
}

// NewHandler takes one checker per sign method it should accept; the first
// is the default for requests that name none.
func NewHandler(st *store.Service, log *zap.Logger, checkers ...*keycheck.Checker) (*Handler, error) {
	if len(checkers) == 0 {
		return nil, errors.New("api: at least one checker is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		Checkers:      make(map[canonical.SignMethod]*keycheck.Checker, len(checkers)),
		DefaultMethod: checkers[0].SignMethod(),
		StoreService:  st,
		Log:           log,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, c := range checkers {
		h.Checkers[c.SignMethod()] = c
	}
	return h, nil
}

// POST /verify
func (h *Handler) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": validationMessage(err),
		})
	}

	method := h.DefaultMethod
	if req.SignMethod != nil {
		method = canonical.SignMethod(*req.SignMethod)
	}
	checker, ok := h.Checkers[method]
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("sign_method %d is not enabled", method),
		})
	}

	body, err := responseBytes(req.Response)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "response must be a JSON object or string",
		})
	}

	var opts []keycheck.CheckOption
	if req.Metadata {
		opts = append(opts, keycheck.WithMetadata())
	}

	// a failed check is a normal answer, not a request error
	lic, err := checker.Check(body, opts...)
	if err != nil {
		return c.JSON(http.StatusOK, VerifyResponse{
			Kind:    string(licerr.KindOf(err)),
			Message: licerr.Message(err),
		})
	}

	resp := VerifyResponse{Valid: true, License: lic}
	if req.DeviceID != "" {
		d := binding.Evaluate(lic, req.DeviceID, binding.Mode{Floating: req.Floating, AllowOverdraft: req.AllowOverdraft})
		resp.Decision = &d
	}
	return c.JSON(http.StatusOK, resp)
}

// GET /license/:product_id/:key
func (h *Handler) GetStoredLicense(c echo.Context) error {
	productID, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid product id",
		})
	}
	key := c.Param("key")
	if key == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "missing license key",
		})
	}

	ctx := c.Request().Context()

	rec, err := h.StoreService.Get(ctx, productID, key)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "license not found",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	checker, ok := h.Checkers[canonical.SignMethod(rec.SignMethod)]
	if !ok {
		return c.JSON(http.StatusConflict, map[string]string{
			"error": fmt.Sprintf("stored with sign_method %d, which is not enabled", rec.SignMethod),
		})
	}

	// the stored body is trusted only after it verifies again
	lic, err := checker.Check(rec.Body)
	if err != nil {
		h.Log.Warn("stored license failed verification",
			zap.Int64("product_id", productID),
			logging.Key(key),
			zap.Error(err),
		)
		return c.JSON(http.StatusConflict, map[string]string{
			"error": licerr.Message(err),
		})
	}

	machines, err := h.StoreService.Machines(ctx, rec.RecordID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, StoredLicenseResponse{
		Record:   *rec,
		Machines: machines,
		License:  lic,
	})
}

func responseBytes(raw json.RawMessage) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return []byte(s), nil
	}
	if strings.HasPrefix(trimmed, "{") {
		return raw, nil
	}
	return nil, errors.New("unsupported response encoding")
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q check", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
