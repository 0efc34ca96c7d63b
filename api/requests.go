package api

import "github.com/Domenick1991/bookingfulfillment/internal/domain"

type passengerRequest struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	GivenName   string `json:"givenName"`
	FamilyName  string `json:"familyName"`
	Gender      string `json:"gender"`
	BornOn      string `json:"bornOn"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

type serviceRequest struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

func toPassengers(in []passengerRequest) []domain.Passenger {
	out := make([]domain.Passenger, 0, len(in))
	for _, p := range in {
		out = append(out, domain.Passenger{
			ID:          p.ID,
			Type:        p.Type,
			Title:       p.Title,
			GivenName:   p.GivenName,
			FamilyName:  p.FamilyName,
			Gender:      p.Gender,
			BornOn:      p.BornOn,
			Email:       p.Email,
			PhoneNumber: p.PhoneNumber,
		})
	}
	return out
}

func toServices(in []serviceRequest) []domain.SelectedService {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.SelectedService, 0, len(in))
	for _, s := range in {
		out = append(out, domain.SelectedService{ID: s.ID, Quantity: s.Quantity})
	}
	return out
}
