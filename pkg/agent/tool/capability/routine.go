package capability

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/dermis/pkg/agent/tool"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"github.com/secmon-lab/dermis/pkg/service/governor"
)

const (
	maxRoutineSteps     = 20
	defaultRoutineTitle = "My routine"
)

type getRoutine struct {
	set *Set
}

func (c *getRoutine) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        types.CapabilityGetRoutine.String(),
		Description: "Get the signed-in user's most recently saved skincare routine",
		Parameters:  map[string]*gollem.Parameter{},
	}
}

func (c *getRoutine) parse(args map[string]any) (model.CapabilityArgs, error) {
	if err := rejectUnknown(args); err != nil {
		return nil, err
	}
	return model.GetRoutineArgs{}, nil
}

func (c *getRoutine) run(ctx context.Context, scope Scope, _ model.CapabilityArgs) (*outcome, error) {
	tool.Update(ctx, "Loading saved routine...")

	routine, err := governor.Cached(ctx, c.set.cache, routineKey(scope.UserID), c.set.cfg.RoutineTTL,
		func(ctx context.Context) (*model.Routine, error) {
			return c.set.repo.Routine().GetLatest(ctx, scope.UserID)
		})
	if err != nil {
		return nil, err
	}
	if routine == nil {
		return &outcome{payload: map[string]any{"found": false}}, nil
	}
	return &outcome{payload: map[string]any{
		"found":   true,
		"routine": routine.Summary(),
	}}, nil
}

type saveRoutine struct {
	set *Set
}

func (c *saveRoutine) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        types.CapabilitySaveRoutine.String(),
		Description: "Save a skincare routine for the signed-in user. Saving the same routine twice has no additional effect.",
		Parameters: map[string]*gollem.Parameter{
			"title": {
				Type:        gollem.TypeString,
				Description: "Short title of the routine",
			},
			"steps": {
				Type:        gollem.TypeArray,
				Description: fmt.Sprintf("Ordered routine steps, 1 to %d", maxRoutineSteps),
				Required:    true,
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"period": {
							Type:        gollem.TypeString,
							Description: "Time of day",
							Enum:        []string{types.RoutinePeriodAM.String(), types.RoutinePeriodPM.String()},
							Required:    true,
						},
						"product_id": {
							Type:        gollem.TypeString,
							Description: "Catalog product used in this step",
						},
						"instruction": {
							Type:        gollem.TypeString,
							Description: "How to perform the step",
						},
					},
				},
			},
		},
	}
}

func (c *saveRoutine) parse(args map[string]any) (model.CapabilityArgs, error) {
	if err := rejectUnknown(args, "title", "steps"); err != nil {
		return nil, err
	}

	title, err := extractString(args, "title", false)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = defaultRoutineTitle
	}

	rawSteps, err := extractObjects(args, "steps")
	if err != nil {
		return nil, err
	}
	if len(rawSteps) == 0 || len(rawSteps) > maxRoutineSteps {
		return nil, invalid("steps", fmt.Sprintf("steps must have 1 to %d entries", maxRoutineSteps))
	}

	steps := make([]model.RoutineStep, len(rawSteps))
	for i, raw := range rawSteps {
		if err := rejectUnknown(raw, "period", "product_id", "instruction"); err != nil {
			return nil, err
		}
		period, err := extractString(raw, "period", true)
		if err != nil {
			return nil, err
		}
		productID, err := extractString(raw, "product_id", false)
		if err != nil {
			return nil, err
		}
		instruction, err := extractString(raw, "instruction", false)
		if err != nil {
			return nil, err
		}

		step := model.RoutineStep{
			Period:      types.RoutinePeriod(period),
			ProductID:   types.ProductID(productID),
			Instruction: instruction,
		}
		if err := step.Validate(); err != nil {
			return nil, goerr.Wrap(ErrInvalidArgument, err.Error(), goerr.V(argKey, fmt.Sprintf("steps[%d]", i)))
		}
		if step.ProductID != "" {
			if err := step.ProductID.Validate(); err != nil {
				return nil, goerr.Wrap(ErrInvalidArgument, err.Error(), goerr.V(argKey, fmt.Sprintf("steps[%d].product_id", i)))
			}
		}
		steps[i] = step
	}

	return model.SaveRoutineArgs{Title: title, Steps: steps}, nil
}

func (c *saveRoutine) run(ctx context.Context, scope Scope, args model.CapabilityArgs) (*outcome, error) {
	a := args.(model.SaveRoutineArgs)
	tool.Update(ctx, fmt.Sprintf("Saving routine: %s", a.Title))

	routine := &model.Routine{
		UserID: scope.UserID,
		Title:  a.Title,
		Steps:  a.Steps,
	}

	// the profile link is informational; a missing or failing profile does not block saving
	if profile, err := c.set.loadProfile(ctx, scope.UserID); err == nil && profile != nil {
		routine.ProfileID = profile.ID
	}

	saved, err := c.set.repo.Routine().Save(ctx, routine)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to save routine", goerr.V("userID", scope.UserID))
	}
	c.set.cache.Delete(routineKey(scope.UserID))

	return &outcome{
		payload: map[string]any{
			"saved":      true,
			"routine_id": saved.ID.String(),
			"steps":      len(saved.Steps),
		},
		sideEffect: &model.SideEffect{
			Resource: "routine:" + saved.ID.String(),
			Summary:  fmt.Sprintf("saved routine %q with %d steps", saved.Title, len(saved.Steps)),
		},
	}, nil
}
