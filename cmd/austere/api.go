package main

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/austere-albatross/eventstore"
	"github.com/austere-albatross/eventstore/aggregate"
	"github.com/austere-albatross/eventstore/internal/logger"
	"github.com/austere-albatross/eventstore/organization"
	"github.com/austere-albatross/eventstore/valueobject"
	"github.com/austere-albatross/eventstore/workflow"
)

type api struct {
	createOrg   *organization.CreateHandler
	registerOrg *organization.RegisterHandler
	createWf    *workflow.CreateHandler
	renameStep  *workflow.RenameStepHandler
	workflows   *aggregate.Store[*workflow.Workflow]
	log         *logger.Logger
}

func (a *api) routes(e *echo.Echo) {
	e.POST("/organizations", a.createOrganization)
	e.POST("/organizations/register", a.registerOrganization)
	e.POST("/workflows", a.createWorkflow)
	e.GET("/workflows/:id", a.getWorkflow)
	e.POST("/workflows/:id/steps/rename", a.renameWorkflowStep)
}

type nameReq struct {
	Name string `json:"name"`
}

type idResp struct {
	ID string `json:"id"`
}

func (a *api) createOrganization(c echo.Context) error {
	var req nameReq

	if err := c.Bind(&req); err != nil {
		return err
	}

	id, err := a.createOrg.Handle(c.Request().Context(), organization.CreateCommand{Name: req.Name})
	if err = a.committed(err); err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusCreated, idResp{ID: id.Value()})
}

func (a *api) registerOrganization(c echo.Context) error {
	var req nameReq

	if err := c.Bind(&req); err != nil {
		return err
	}

	id, err := a.registerOrg.Handle(c.Request().Context(), organization.RegisterCommand{Name: req.Name})
	if err = a.committed(err); err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusCreated, idResp{ID: id.Value()})
}

type createWorkflowReq struct {
	Name           string `json:"name"`
	OrganizationID string `json:"organizationId"`
}

func (a *api) createWorkflow(c echo.Context) error {
	var req createWorkflowReq

	if err := c.Bind(&req); err != nil {
		return err
	}

	id, err := a.createWf.Handle(c.Request().Context(), workflow.CreateCommand{
		Name:           req.Name,
		OrganizationID: req.OrganizationID,
	})
	if err = a.committed(err); err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusCreated, idResp{ID: id.Value()})
}

type workflowResp struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	OrganizationID string          `json:"organizationId"`
	Steps          []workflow.Step `json:"steps"`
	Version        int             `json:"version"`
}

func (a *api) getWorkflow(c echo.Context) error {
	var wf workflow.Workflow

	if err := a.workflows.ByID(c.Request().Context(), c.Param("id"), &wf); err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, workflowResp{
		ID:             wf.ID().Value(),
		Name:           wf.Name().Value(),
		OrganizationID: wf.OrganizationID().Value(),
		Steps:          wf.Steps(),
		Version:        wf.Version(),
	})
}

type renameStepReq struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (a *api) renameWorkflowStep(c echo.Context) error {
	var req renameStepReq

	if err := c.Bind(&req); err != nil {
		return err
	}

	err := a.renameStep.Handle(c.Request().Context(), workflow.RenameStepCommand{
		WorkflowID: c.Param("id"),
		From:       req.From,
		To:         req.To,
	})
	if err = a.committed(err); err != nil {
		return a.fail(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

type errResp struct {
	Error string `json:"error"`
}

// committed drops subscriber failures: the events are stored at that point
// and the publisher has logged every failed handler
func (a *api) committed(err error) error {
	var dispatchErr *aggregate.DispatchError

	if errors.As(err, &dispatchErr) {
		return nil
	}

	return err
}

// fail maps domain errors to status codes
func (a *api) fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, valueobject.ErrValidation),
		errors.Is(err, workflow.ErrDuplicateStep):
		status = http.StatusBadRequest
	case errors.Is(err, organization.ErrDuplicateName),
		errors.Is(err, eventstore.ErrConcurrencyConflict):
		status = http.StatusConflict
	case errors.Is(err, aggregate.ErrAggregateNotFound),
		errors.Is(err, aggregate.ErrAggregateTypeMismatch),
		errors.Is(err, workflow.ErrStepNotFound):
		status = http.StatusNotFound
	default:
		a.log.Error("request failed", "path", c.Path(), "error", err)
	}

	return c.JSON(status, errResp{Error: err.Error()})
}
