package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aurellebeauty/aurelle-backend/internal/shipping"
	"github.com/aurellebeauty/aurelle-backend/pkg/db/models"
	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
)

type stubShippingService struct {
	createInput   *shipping.CreateShipmentInput
	assignInput   *shipping.AssignAWBInput
	shipment      *models.Shipment
	alreadyExists bool
	labelURL      string
	tracking      *shipping.TrackingView
	synced        int
	err           error
}

func (s *stubShippingService) CreateShipment(ctx context.Context, input shipping.CreateShipmentInput) (*shipping.ShipmentResult, error) {
	s.createInput = &input
	if s.err != nil {
		return nil, s.err
	}
	return &shipping.ShipmentResult{Shipment: s.shipment, AlreadyExists: s.alreadyExists}, nil
}

func (s *stubShippingService) AssignAWB(ctx context.Context, input shipping.AssignAWBInput) (*shipping.ShipmentResult, error) {
	s.assignInput = &input
	if s.err != nil {
		return nil, s.err
	}
	return &shipping.ShipmentResult{Shipment: s.shipment, AlreadyExists: s.alreadyExists}, nil
}

func (s *stubShippingService) GenerateLabel(ctx context.Context, shipmentID uuid.UUID) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.labelURL, nil
}

func (s *stubShippingService) RetryPendingAWBs(ctx context.Context) (int, error) {
	return 0, s.err
}

func (s *stubShippingService) SyncStatuses(ctx context.Context) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.synced, nil
}

func (s *stubShippingService) TrackByAWB(ctx context.Context, awb string) (*shipping.TrackingView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tracking, nil
}

func withShipmentParam(req *http.Request, shipmentID string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("shipmentId", shipmentID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func withAWBParam(req *http.Request, awb string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("awb", awb)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestAdminShipmentCreate(t *testing.T) {
	adminID := uuid.New()
	orderID := uuid.New()
	svc := &stubShippingService{
		shipment: &models.Shipment{ID: uuid.New(), OrderID: orderID, Status: enums.ShipmentStatusPendingAWB},
	}

	body := `{"weight_kg": 0.45, "length_cm": 20, "breadth_cm": 15, "height_cm": 10}`
	req := withOrderParam(authedRequest(http.MethodPost, "/api/admin/v1/orders/"+orderID.String()+"/shipment", body, adminID, enums.UserRoleAdmin), orderID.String())
	resp := httptest.NewRecorder()
	AdminShipmentCreate(svc, nil)(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.createInput == nil || svc.createInput.OrderID != orderID {
		t.Fatalf("unexpected input %+v", svc.createInput)
	}
	if svc.createInput.WeightKG != 0.45 {
		t.Fatalf("expected weight forwarded, got %f", svc.createInput.WeightKG)
	}
}

func TestAdminShipmentCreateRepeatAnswersOK(t *testing.T) {
	orderID := uuid.New()
	svc := &stubShippingService{
		shipment:      &models.Shipment{ID: uuid.New(), OrderID: orderID, Status: enums.ShipmentStatusReady},
		alreadyExists: true,
	}

	body := `{"weight_kg": 0.45}`
	req := withOrderParam(authedRequest(http.MethodPost, "/api/admin/v1/orders/"+orderID.String()+"/shipment", body, uuid.New(), enums.UserRoleAdmin), orderID.String())
	resp := httptest.NewRecorder()
	AdminShipmentCreate(svc, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for repeat create got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data shipmentResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.AlreadyExists {
		t.Fatal("response must flag the existing shipment")
	}
}

func TestAdminShipmentCreateRequiresWeight(t *testing.T) {
	svc := &stubShippingService{}
	orderID := uuid.New()
	req := withOrderParam(authedRequest(http.MethodPost, "/api/admin/v1/orders/"+orderID.String()+"/shipment", `{}`, uuid.New(), enums.UserRoleAdmin), orderID.String())
	resp := httptest.NewRecorder()
	AdminShipmentCreate(svc, nil)(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.createInput != nil {
		t.Fatal("service must not run on validation failure")
	}
}

func TestAdminAssignAWBIsManual(t *testing.T) {
	adminID := uuid.New()
	shipmentID := uuid.New()
	awb := "AWB123"
	svc := &stubShippingService{
		shipment: &models.Shipment{ID: shipmentID, Status: enums.ShipmentStatusReady, AWBCode: &awb},
	}

	req := withShipmentParam(authedRequest(http.MethodPost, "/api/admin/v1/shipments/"+shipmentID.String()+"/awb", "", adminID, enums.UserRoleAdmin), shipmentID.String())
	resp := httptest.NewRecorder()
	AdminAssignAWB(svc, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.assignInput == nil || !svc.assignInput.Manual {
		t.Fatalf("admin awb assignment must be manual, got %+v", svc.assignInput)
	}

	var envelope struct {
		Data shipmentResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.AWBCode == nil || *envelope.Data.AWBCode != "AWB123" {
		t.Fatalf("unexpected awb %+v", envelope.Data.AWBCode)
	}
}

func TestAdminAssignAWBAlreadyAssignedFlagged(t *testing.T) {
	shipmentID := uuid.New()
	awb := "AWB123"
	svc := &stubShippingService{
		shipment:      &models.Shipment{ID: shipmentID, Status: enums.ShipmentStatusReady, AWBCode: &awb},
		alreadyExists: true,
	}

	req := withShipmentParam(authedRequest(http.MethodPost, "/api/admin/v1/shipments/"+shipmentID.String()+"/awb", "", uuid.New(), enums.UserRoleAdmin), shipmentID.String())
	resp := httptest.NewRecorder()
	AdminAssignAWB(svc, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data shipmentResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.AlreadyExists {
		t.Fatal("response must flag the already assigned awb")
	}
}

func TestAdminAssignAWBFailureCarriesRetryCount(t *testing.T) {
	shipmentID := uuid.New()
	cause := errors.New("carrier rejected")
	svc := &stubShippingService{
		err: pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "carrier refused awb assignment").
			WithDetails(map[string]any{"awb_retry_count": 2, "awb_error_code": "NO_CAPACITY"}),
	}

	req := withShipmentParam(authedRequest(http.MethodPost, "/api/admin/v1/shipments/"+shipmentID.String()+"/awb", "", uuid.New(), enums.UserRoleAdmin), shipmentID.String())
	resp := httptest.NewRecorder()
	AdminAssignAWB(svc, nil)(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Details["awb_retry_count"] != float64(2) {
		t.Fatalf("expected retry count in details, got %+v", envelope.Error.Details)
	}
}

func TestAdminAssignAWBPropagatesStateConflict(t *testing.T) {
	shipmentID := uuid.New()
	svc := &stubShippingService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "shipment is not awaiting awb")}

	req := withShipmentParam(authedRequest(http.MethodPost, "/api/admin/v1/shipments/"+shipmentID.String()+"/awb", "", uuid.New(), enums.UserRoleAdmin), shipmentID.String())
	resp := httptest.NewRecorder()
	AdminAssignAWB(svc, nil)(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestAdminGenerateLabel(t *testing.T) {
	shipmentID := uuid.New()
	svc := &stubShippingService{labelURL: "https://cdn.example.com/labels/AWB123.pdf"}

	req := withShipmentParam(authedRequest(http.MethodPost, "/api/admin/v1/shipments/"+shipmentID.String()+"/label", "", uuid.New(), enums.UserRoleAdmin), shipmentID.String())
	resp := httptest.NewRecorder()
	AdminGenerateLabel(svc, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["label_url"] != svc.labelURL {
		t.Fatalf("unexpected label url %s", envelope.Data["label_url"])
	}
}

func TestAdminStatusSync(t *testing.T) {
	svc := &stubShippingService{synced: 7}

	req := authedRequest(http.MethodPost, "/api/admin/v1/shipments/sync", "", uuid.New(), enums.UserRoleAdmin)
	resp := httptest.NewRecorder()
	AdminStatusSync(svc, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data map[string]int `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["shipments_updated"] != 7 {
		t.Fatalf("unexpected count %d", envelope.Data["shipments_updated"])
	}
}

func TestTrackShipment(t *testing.T) {
	svc := &stubShippingService{
		tracking: &shipping.TrackingView{
			AWB:           "AWB123",
			Status:        enums.ShipmentStatusInTransit,
			CarrierStatus: "IN TRANSIT",
			CourierName:   "Delhivery",
		},
	}

	req := withAWBParam(httptest.NewRequest(http.MethodGet, "/api/v1/shipping/track/AWB123", nil), "AWB123")
	resp := httptest.NewRecorder()
	TrackShipment(svc, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data shipping.TrackingView `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.AWB != "AWB123" || envelope.Data.CourierName != "Delhivery" {
		t.Fatalf("unexpected tracking %+v", envelope.Data)
	}
}

func TestTrackShipmentUnknownAWB(t *testing.T) {
	svc := &stubShippingService{err: pkgerrors.New(pkgerrors.CodeNotFound, "tracking number not found")}

	req := withAWBParam(httptest.NewRequest(http.MethodGet, "/api/v1/shipping/track/NOPE", nil), "NOPE")
	resp := httptest.NewRecorder()
	TrackShipment(svc, nil)(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
