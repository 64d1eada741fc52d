package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/hours"
	"github.com/samirrijal/nightmap/internal/core/ports"
)

// buildSchema creates the GraphQL schema wired to our services. Field
// names follow the JSON tags of the domain types.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	hoursType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Hours",
		Fields: graphql.Fields{
			"status":      &graphql.Field{Type: graphql.String},
			"label":       &graphql.Field{Type: graphql.String},
			"detail":      &graphql.Field{Type: graphql.String},
			"color":       &graphql.Field{Type: graphql.String},
			"today_open":  &graphql.Field{Type: graphql.String},
			"today_close": &graphql.Field{Type: graphql.String},
		},
	})

	venueType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Venue",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"name":      &graphql.Field{Type: graphql.String},
			"category":  &graphql.Field{Type: graphql.String},
			"address":   &graphql.Field{Type: graphql.String},
			"location":  &graphql.Field{Type: geoPointType},
			"image_url": &graphql.Field{Type: graphql.String},
			"tags":      &graphql.Field{Type: graphql.NewList(graphql.String)},
			"hours": &graphql.Field{
				Type:        hoursType,
				Description: "Opening status right now, in the venue timezone",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v, ok := p.Source.(domain.Venue)
					if !ok {
						if vp, ok := p.Source.(*domain.Venue); ok && vp != nil {
							v = *vp
						}
					}
					r := hours.Resolve(v.OperationHours, deps.Venues.Now())
					l := hours.Format(r)
					return map[string]interface{}{
						"status":      string(l.Status),
						"label":       l.Label,
						"detail":      l.Detail,
						"color":       l.Color,
						"today_open":  r.TodayOpen,
						"today_close": r.TodayClose,
					}, nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"venues": &graphql.Field{
				Type:        graphql.NewList(venueType),
				Description: "List venues, optionally filtered",
				Args: graphql.FieldConfigArgument{
					"query":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"category": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"offset":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					venues, _, err := deps.Venues.List(p.Context, domain.VenueFilter{
						Query:    p.Args["query"].(string),
						Category: p.Args["category"].(string),
						Offset:   p.Args["offset"].(int),
						Limit:    p.Args["limit"].(int),
					})
					return venues, err
				},
			},
			"venue": &graphql.Field{
				Type:        venueType,
				Description: "Get a venue by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v, err := deps.Venues.GetByID(p.Context, p.Args["id"].(string))
					if errors.Is(err, ports.ErrNotFound) {
						return nil, nil
					}
					return v, err
				},
			},
			"geocode": &graphql.Field{
				Type:        geoPointType,
				Description: "Resolve an address to coordinates",
				Args: graphql.FieldConfigArgument{
					"address": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pt, _, err := deps.Map.Geocode(p.Context, p.Args["address"].(string))
					if errors.Is(err, ports.ErrGeocodeNoResult) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return pt, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
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
		if req.Query == "" {
			return errBadRequest(c, "query is required")
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
