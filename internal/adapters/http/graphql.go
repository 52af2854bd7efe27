package http

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/routecast/internal/core/domain"
)

// jsonScalar exposes nested config structs without mirroring every field.
var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value",
	Serialize: func(value interface{}) interface{} {
		data, err := json.Marshal(value)
		if err != nil {
			return nil
		}
		var out interface{}
		_ = json.Unmarshal(data, &out)
		return out
	},
})

// buildSchema creates the GraphQL schema over presets and job history.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	presetType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Preset",
		Fields: graphql.Fields{
			"name": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return string(p.Source.(PresetView).Name), nil
			}},
			"config": &graphql.Field{Type: jsonScalar, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(PresetView).Config, nil
			}},
		},
	})

	jobType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RenderJob",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"kind":        &graphql.Field{Type: graphql.String},
			"format":      &graphql.Field{Type: graphql.String},
			"status":      &graphql.Field{Type: graphql.String},
			"points":      &graphql.Field{Type: graphql.Int},
			"laps":        &graphql.Field{Type: graphql.Int},
			"frames":      &graphql.Field{Type: graphql.Int},
			"artifact_id": &graphql.Field{Type: graphql.String},
			"error":       &graphql.Field{Type: graphql.String},
			"duration_ms": &graphql.Field{Type: graphql.Int},
			"created_at":  &graphql.Field{Type: graphql.String},
			"finished_at": &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"presets": &graphql.Field{
				Type:        graphql.NewList(presetType),
				Description: "Bundled video presets",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return presetViews(), nil
				},
			},
			"preset": &graphql.Field{
				Type:        presetType,
				Description: "One preset by name",
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name := domain.Preset(p.Args["name"].(string))
					cfg, err := domain.PresetConfig(name)
					if err != nil {
						return nil, err
					}
					return PresetView{Name: name, Config: cfg}, nil
				},
			},
			"colors": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Named colors a config may reference",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return names(domain.Colors()), nil
				},
			},
			"job": &graphql.Field{
				Type:        jobType,
				Description: "A render job by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					job, err := deps.Render.GetJob(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return jobMap(*job), nil
				},
			},
			"jobs": &graphql.Field{
				Type:        graphql.NewList(jobType),
				Description: "Render history, newest first",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					jobs, err := deps.Render.ListJobs(p.Context, p.Args["limit"].(int), p.Args["offset"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, len(jobs))
					for i, j := range jobs {
						out[i] = jobMap(j)
					}
					return out, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func jobMap(j domain.RenderJob) map[string]interface{} {
	m := map[string]interface{}{
		"id":          j.ID,
		"kind":        string(j.Kind),
		"format":      string(j.Format),
		"status":      string(j.Status),
		"points":      j.Points,
		"laps":        j.Laps,
		"frames":      j.Frames,
		"artifact_id": j.ArtifactID,
		"error":       j.Error,
		"duration_ms": j.DurationMS,
		"created_at":  j.CreatedAt.Format(time.RFC3339),
	}
	if j.FinishedAt != nil {
		m["finished_at"] = j.FinishedAt.Format(time.RFC3339)
	}
	return m
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
