package flows

import "github.com/netkrida/myhome-sub001/pkg/domain"

// PropertyFlow is the namespace of the property creation wizard.
const PropertyFlow = "property-create"

// PropertyStep is one slot of the property wizard aggregate.
type PropertyStep interface {
	propertySlot() int
}

// PropertyBasics is step 1 of the property wizard.
type PropertyBasics struct {
	Name        string `json:"name" validate:"required,max=120"`
	Kind        string `json:"kind" validate:"required,oneof=putra putri campur"`
	Description string `json:"description,omitempty" validate:"max=2000"`
}

// PropertyLocation is step 2 of the property wizard.
type PropertyLocation struct {
	Address   string  `json:"address" validate:"required"`
	City      string  `json:"city" validate:"required"`
	Province  string  `json:"province" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// PropertyPhotos is step 3 of the property wizard. Images are URLs returned
// by the media host.
type PropertyPhotos struct {
	Images []string `json:"images" validate:"min=1,dive,url"`
	Cover  int      `json:"cover" validate:"gte=0"`
}

// PropertyFacilities is step 4 of the property wizard.
type PropertyFacilities struct {
	Facilities []string `json:"facilities" validate:"min=1"`
	Rules      []string `json:"rules,omitempty"`
}

func (PropertyBasics) propertySlot() int     { return 0 }
func (PropertyLocation) propertySlot() int   { return 1 }
func (PropertyPhotos) propertySlot() int     { return 2 }
func (PropertyFacilities) propertySlot() int { return 3 }

// PropertySubmission is the body posted once every step is complete.
type PropertySubmission struct {
	Basics     PropertyBasics     `json:"basics"`
	Location   PropertyLocation   `json:"location"`
	Photos     PropertyPhotos     `json:"photos"`
	Facilities PropertyFacilities `json:"facilities"`
}

// PropertyAggregate encodes typed steps into an aggregate.
func PropertyAggregate(steps ...PropertyStep) (domain.Aggregate, error) {
	return encodeVariants(steps, PropertyStep.propertySlot)
}

// Property returns the property creation flow.
func Property() *Definition {
	return &Definition{
		Name:     PropertyFlow,
		Endpoint: "/api/properties",
		Steps: []domain.StepDescriptor{
			{ID: "basics", Title: "Basic info", Description: "Name and type of the kos"},
			{ID: "location", Title: "Location", Description: "Address and map pin"},
			// Uploads are slow to redo, so half-finished galleries are kept.
			{ID: "photos", Title: "Photos", Description: "Gallery and cover image", Persist: domain.PersistAlways},
			{ID: "facilities", Title: "Facilities", Description: "Shared facilities and house rules"},
		},
		payloads: []func() any{
			payload[PropertyBasics](),
			payload[PropertyLocation](),
			payload[PropertyPhotos](),
			payload[PropertyFacilities](),
		},
		bind: bindProperty,
	}
}

func bindProperty(agg domain.Aggregate) (any, error) {
	var (
		sub PropertySubmission
		err error
	)
	if sub.Basics, err = decodeSlot[PropertyBasics](agg, 0); err != nil {
		return nil, err
	}
	if sub.Location, err = decodeSlot[PropertyLocation](agg, 1); err != nil {
		return nil, err
	}
	if sub.Photos, err = decodeSlot[PropertyPhotos](agg, 2); err != nil {
		return nil, err
	}
	if sub.Facilities, err = decodeSlot[PropertyFacilities](agg, 3); err != nil {
		return nil, err
	}
	return &sub, nil
}
