package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectServiceShowsCategoriesOnFreeText(t *testing.T) {
	h := NewSelectServiceHandler(newFakeDirectory(), nil)

	out, err := h.Handle(context.Background(), newSession(StateSelectService, nil), "I want to book", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeList, out.Kind)
	require.Len(t, out.Sections, 1)
	require.Len(t, out.Sections[0].Rows, 2)
	require.Equal(t, "category_hair", out.Sections[0].Rows[0].ID)
	require.Equal(t, "category_nails", out.Sections[0].Rows[1].ID)
	require.Nil(t, out.TransitionTo)
}

func TestSelectServiceCategoryTokenListsItsServices(t *testing.T) {
	h := NewSelectServiceHandler(newFakeDirectory(), nil)

	out, err := h.Handle(context.Background(), newSession(StateSelectService, nil), "category_nails", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeList, out.Kind)

	// Exactly the category's services, in catalog order.
	rows := out.Sections[0].Rows
	require.Len(t, rows, 2)
	require.Equal(t, "service_gel-manicure", rows[0].ID)
	require.Equal(t, "service_spa-pedicure", rows[1].ID)

	// Price and deposit preview on each row.
	require.Contains(t, rows[0].Description, "KES 1,500.00")
	require.Contains(t, rows[0].Description, "KES 450.00")

	require.Equal(t, "nails", out.UpdateContext.String(ctxSelectedCategoryID))
	require.Nil(t, out.TransitionTo)
}

func TestSelectServiceUnknownCategoryFallsBack(t *testing.T) {
	h := NewSelectServiceHandler(newFakeDirectory(), nil)

	out, err := h.Handle(context.Background(), newSession(StateSelectService, nil), "category_massage", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeList, out.Kind)
	require.Contains(t, out.Body, "Something went wrong")
	require.Equal(t, "category_hair", out.Sections[0].Rows[0].ID)
	require.Nil(t, out.TransitionTo)
}

func TestSelectServiceServiceTokenConfirms(t *testing.T) {
	h := NewSelectServiceHandler(newFakeDirectory(), nil)

	out, err := h.Handle(context.Background(), newSession(StateSelectService, nil), "service_gel-manicure", "Amina")
	require.NoError(t, err)
	require.Equal(t, OutcomeText, out.Kind)
	require.Contains(t, out.Body, "Gel Manicure")
	require.Contains(t, out.Body, "Amina")

	svc := out.UpdateContext.Map(ctxSelectedService)
	require.NotNil(t, svc)
	require.Equal(t, testManicureID.String(), svc.String("id"))
	require.Equal(t, "gel-manicure", svc.String("slug"))
	require.Equal(t, "1500.00", svc.String("price"))
	require.Equal(t, "Nails", svc.String("category"))

	require.NotNil(t, out.TransitionTo)
	require.Equal(t, StateSelectDateTime, *out.TransitionTo)
}

func TestSelectServiceStaleServiceTokenFallsBack(t *testing.T) {
	h := NewSelectServiceHandler(newFakeDirectory(), nil)

	out, err := h.Handle(context.Background(), newSession(StateSelectService, nil), "service_retired-treatment", "")
	require.NoError(t, err)
	require.Equal(t, OutcomeList, out.Kind)
	require.Nil(t, out.TransitionTo)
	require.Nil(t, out.UpdateContext.Map(ctxSelectedService))
}
