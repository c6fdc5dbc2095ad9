package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austere-albatross/eventstore"
	"github.com/austere-albatross/eventstore/aggregate"
	"github.com/austere-albatross/eventstore/internal/logger"
	"github.com/austere-albatross/eventstore/organization"
	"github.com/austere-albatross/eventstore/readmodel"
	"github.com/austere-albatross/eventstore/workflow"
)

func newTestServer() *echo.Echo {
	store := eventstore.NewMemoryStore()
	publisher := aggregate.NewPublisher()
	names := readmodel.NewMemory()

	publisher.Subscribe(readmodel.NewNameProjection(names))

	workflows := aggregate.NewStore[*workflow.Workflow](store, aggregate.WithPublisher(publisher))

	h := &api{
		createOrg:   organization.NewCreateHandler(store, publisher),
		registerOrg: organization.NewRegisterHandler(store, publisher, organization.NewUniquenessService(names)),
		createWf:    workflow.NewCreateHandler(store, publisher),
		renameStep:  workflow.NewRenameStepHandler(workflows),
		workflows:   workflows,
		log:         logger.Nop(),
	}

	e := echo.New()

	h.routes(e)

	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	return rec
}

func TestAPI_Register_Rejects_Duplicate_Name(t *testing.T) {
	e := newTestServer()

	rec := do(e, http.MethodPost, "/organizations/register", `{"name":"Test Org"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(e, http.MethodPost, "/organizations/register", `{"name":"Test Org"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_Create_Rejects_Blank_Name(t *testing.T) {
	e := newTestServer()

	rec := do(e, http.MethodPost, "/organizations", `{"name":"  "}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Workflow_Lifecycle(t *testing.T) {
	e := newTestServer()

	rec := do(e, http.MethodPost, "/workflows", `{"name":"Product Release Workflow","organizationId":"org-123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created idResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = do(e, http.MethodPost, "/workflows/"+created.ID+"/steps/rename", `{"from":"in-process","to":"in-review"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(e, http.MethodGet, "/workflows/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var wf workflowResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wf))

	assert.Equal(t, "Product Release Workflow", wf.Name)
	assert.Equal(t, "org-123", wf.OrganizationID)
	assert.Equal(t, 2, wf.Version)
	assert.Equal(t, []workflow.Step{
		{Label: workflow.StepCommitted},
		{Label: "in-review"},
		{Label: workflow.StepCompleted},
	}, wf.Steps)
}

func TestAPI_Unknown_Workflow(t *testing.T) {
	e := newTestServer()

	rec := do(e, http.MethodGet, "/workflows/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodPost, "/workflows/nope/steps/rename", `{"from":"committed","to":"done"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Organization_Is_Not_A_Workflow(t *testing.T) {
	e := newTestServer()

	rec := do(e, http.MethodPost, "/organizations", `{"name":"Test Org"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created idResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = do(e, http.MethodGet, "/workflows/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodPost, "/workflows/"+created.ID+"/steps/rename", `{"from":"committed","to":"done"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
