package reconcile

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osm-versailles/internal/overrides"
)

func newTestReconciler() *Reconciler {
	return New(testTable(), overrides.Default())
}

func TestReconcile(t *testing.T) {
	r := newTestReconciler()

	tests := []struct {
		name     string
		postcode string
		city     string
		want     Pair
	}{
		{
			name:     "transposed Jouy-en-Josas postcode",
			postcode: "78530",
			city:     "Jouy-en-Josas",
			want:     Pair{Postcode: "78350", City: "Jouy En Josas"},
		},
		{
			name:     "78530 without the exact city is kept",
			postcode: "78530",
			city:     "Buc",
			want:     Pair{Postcode: "78530", City: "Buc"},
		},
		{
			name:     "typo fix needs the exact city spelling",
			postcode: "78530",
			city:     "jouy-en-josas",
			want:     Pair{Postcode: "78530", City: "Buc"},
		},
		{
			name:     "missing postcode from curated city",
			postcode: "",
			city:     "Versailles",
			want:     Pair{Postcode: "78000", City: "Versailles"},
		},
		{
			name:     "missing postcode from lower case variant",
			postcode: "",
			city:     "le Chesnay",
			want:     Pair{Postcode: "78150", City: "Le Chesnay"},
		},
		{
			name:     "special delivery postcode overrides the match",
			postcode: "78103",
			city:     "Saint-Germain-en-Laye",
			want:     Pair{Postcode: "78103", City: "St Germain En Laye"},
		},
		{
			name:     "special delivery postcode without city",
			postcode: "92852",
			city:     "",
			want:     Pair{Postcode: "92852", City: "Rueil Malmaison"},
		},
		{
			name:     "postcode only",
			postcode: "78150",
			city:     "",
			want:     Pair{Postcode: "78150", City: "Le Chesnay"},
		},
		{
			name:     "unknown postcode leaves city absent",
			postcode: "99999",
			city:     "Nowhere",
			want:     Pair{Postcode: "99999", City: ""},
		},
		{
			name:     "misspelled city is corrected",
			postcode: "78150",
			city:     "Roquencourt",
			want:     Pair{Postcode: "78150", City: "Rocquencourt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Reconcile(tt.postcode, tt.city)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReconcileSpecialPostcodeAlwaysWins(t *testing.T) {
	tables := overrides.Default()
	want := tables.PostcodeToCity["78103"]

	for _, city := range []string{"", "Versailles", "St Germain En Laye", "zzz"} {
		got, err := New(testTable(), tables).Reconcile("78103", city)
		require.NoError(t, err)
		assert.Equal(t, want, got.City, "city %q", city)
	}
}

func TestReconcileUnresolvableCity(t *testing.T) {
	r := newTestReconciler()

	got, err := r.Reconcile("", "Atlantis")
	require.Error(t, err)
	assert.Equal(t, Pair{}, got)
	assert.True(t, errors.Is(err, ErrUnresolvableCity))

	var ue *UnresolvableCityError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "Atlantis", ue.City)
	assert.Contains(t, err.Error(), `"Atlantis"`)
}

func TestReconcileBothEmpty(t *testing.T) {
	// Outside the documented domain: the empty city is not a curated key.
	_, err := newTestReconciler().Reconcile("", "")
	assert.ErrorIs(t, err, ErrUnresolvableCity)
}

func TestReconcileIsIdempotent(t *testing.T) {
	r := newTestReconciler()
	inputs := []Pair{
		{Postcode: "78530", City: "Jouy-en-Josas"},
		{Postcode: "", City: "Versailles"},
		{Postcode: "", City: "Le Vésinet"},
		{Postcode: "78103", City: "whatever"},
		{Postcode: "78150", City: "Roquencourt"},
		{Postcode: "78150", City: ""},
		{Postcode: "99999", City: "Nowhere"},
		{Postcode: "11111", City: "Xyz"},
		{Postcode: "22222", City: "A"},
		{Postcode: "78100", City: "saint germain"},
	}

	for _, in := range inputs {
		first, err := r.ReconcilePair(in)
		require.NoError(t, err, "%+v", in)
		second, err := r.ReconcilePair(first)
		require.NoError(t, err, "%+v", first)
		assert.Equal(t, first, second, "input %+v", in)
	}
}

func TestReconcileUsesInjectedTables(t *testing.T) {
	tables := overrides.Tables{
		CityToPostcode: map[string]string{"Somewhere": "78220"},
		PostcodeToCity: map[string]string{"78000": "Versailles Cedex"},
	}
	r := New(testTable(), tables)

	got, err := r.Reconcile("", "Somewhere")
	require.NoError(t, err)
	assert.Equal(t, Pair{Postcode: "78220", City: "Viroflay"}, got)

	got, err = r.Reconcile("78000", "Versailles")
	require.NoError(t, err)
	assert.Equal(t, "Versailles Cedex", got.City)

	_, err = r.Reconcile("", "Versailles")
	assert.ErrorIs(t, err, ErrUnresolvableCity, "default tables are not consulted")

	// mutating the caller's maps after New has no effect
	tables.CityToPostcode["Atlantis"] = "78000"
	_, err = r.Reconcile("", "Atlantis")
	assert.ErrorIs(t, err, ErrUnresolvableCity)
}

func TestReconcileConcurrent(t *testing.T) {
	r := newTestReconciler()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got, err := r.Reconcile("78530", "Jouy-en-Josas")
				assert.NoError(t, err)
				assert.Equal(t, "78350", got.Postcode)
			}
		}()
	}
	wg.Wait()
}

func TestPairIsEmpty(t *testing.T) {
	assert.True(t, Pair{}.IsEmpty())
	assert.False(t, Pair{City: "Buc"}.IsEmpty())
	assert.False(t, Pair{Postcode: "78530"}.IsEmpty())
}
