package flows

import "github.com/netkrida/myhome-sub001/pkg/domain"

// RoomTypeFlow is the namespace of the room-type creation wizard.
const RoomTypeFlow = "room-type-create"

// RoomTypeStep is one slot of the room-type wizard aggregate.
type RoomTypeStep interface {
	roomTypeSlot() int
}

// RoomTypeDetails is step 1 of the room-type wizard.
type RoomTypeDetails struct {
	PropertyID string  `json:"property_id" validate:"required"`
	Name       string  `json:"name" validate:"required,max=80"`
	SizeM2     float64 `json:"size_m2" validate:"gt=0"`
	Capacity   int     `json:"capacity" validate:"min=1,max=8"`
}

// RoomTypePricing is step 2 of the room-type wizard.
type RoomTypePricing struct {
	MonthlyPrice int64 `json:"monthly_price" validate:"gt=0"`
	DailyPrice   int64 `json:"daily_price,omitempty" validate:"gte=0"`
}

func (RoomTypeDetails) roomTypeSlot() int { return 0 }
func (RoomTypePricing) roomTypeSlot() int { return 1 }

// RoomTypeSubmission is the body posted once every step is complete.
type RoomTypeSubmission struct {
	Details RoomTypeDetails `json:"details"`
	Pricing RoomTypePricing `json:"pricing"`
}

// RoomTypeAggregate encodes typed steps into an aggregate.
func RoomTypeAggregate(steps ...RoomTypeStep) (domain.Aggregate, error) {
	return encodeVariants(steps, RoomTypeStep.roomTypeSlot)
}

// RoomType returns the room-type creation flow.
func RoomType() *Definition {
	return &Definition{
		Name:     RoomTypeFlow,
		Endpoint: "/api/room-types",
		Steps: []domain.StepDescriptor{
			{ID: "details", Title: "Details"},
			{ID: "pricing", Title: "Pricing"},
		},
		payloads: []func() any{
			payload[RoomTypeDetails](),
			payload[RoomTypePricing](),
		},
		bind: func(agg domain.Aggregate) (any, error) {
			details, err := decodeSlot[RoomTypeDetails](agg, 0)
			if err != nil {
				return nil, err
			}
			pricing, err := decodeSlot[RoomTypePricing](agg, 1)
			if err != nil {
				return nil, err
			}
			return &RoomTypeSubmission{Details: details, Pricing: pricing}, nil
		},
	}
}
