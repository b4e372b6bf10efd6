package accounts

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/legal-aid-backend/internal/testdb"
	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

func TestProfile_VariantAccessors(t *testing.T) {
	p := Profile{Kind: models.RoleLawyer, Lawyer: &models.LawyerProfile{FullNameEn: "Nasrin Akter", ProfilePhotoKey: "avatars/n.png"}}
	assert.Equal(t, "Nasrin Akter", p.DisplayName())
	assert.Equal(t, "avatars/n.png", p.PhotoKey())
	assert.False(t, p.Empty())

	admin := Profile{Kind: models.RoleAdmin, Admin: &models.AdminProfile{FullName: "Ops"}}
	assert.Equal(t, "Ops", admin.DisplayName())
	assert.Equal(t, "", admin.PhotoKey())

	assert.True(t, Profile{Kind: models.RoleCitizen}.Empty())
}

func TestProfile_MarshalsActiveVariantOnly(t *testing.T) {
	p := Profile{Kind: models.RoleCitizen, Citizen: &models.CitizenProfile{FullNameEn: "Karim", GeoDistrict: "Dhaka"}}
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "Karim", out["full_name_en"])
	assert.Equal(t, "Dhaka", out["geo_district"])
	assert.NotContains(t, out, "Kind")

	raw, err = json.Marshal(Profile{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestLoad_ResolvesByRole(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()

	citizen := testdb.Citizen(t, db, "Karim")
	lawyerUser, lp := testdb.Lawyer(t, db, "Nasrin", models.VerificationPending)

	p, err := Load(ctx, db, citizen)
	require.NoError(t, err)
	require.NotNil(t, p.Citizen)
	assert.Nil(t, p.Lawyer)
	assert.Equal(t, "Karim", p.DisplayName())

	p, err = Load(ctx, db, lawyerUser)
	require.NoError(t, err)
	require.NotNil(t, p.Lawyer)
	assert.Equal(t, lp.ID, p.Lawyer.ID)

	got, err := LawyerByUser(ctx, db, lawyerUser.ID)
	require.NoError(t, err)
	assert.Equal(t, lp.ID, got.ID)

	_, err = LawyerByUser(ctx, db, citizen.ID)
	assert.ErrorIs(t, err, ErrNoProfile)
}
