// SPDX-License-Identifier: MIT

package art

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetAdapterSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/search"):
			assert.Equal(t, "water lilies", r.URL.Query().Get("q"))
			w.Write([]byte(`{"total":3,"objectIDs":[101,102,103]}`))
		case r.URL.Path == "/objects/101":
			w.Write([]byte(`{"objectID":101,"title":"Water Lilies","artistDisplayName":"Claude Monet",
				"objectDate":"1919","primaryImage":"https://images.met/101.jpg",
				"primaryImageSmall":"https://images.met/101-small.jpg",
				"department":"European Paintings","classification":"Paintings","isPublicDomain":true}`))
		case r.URL.Path == "/objects/102":
			// Not public domain: must be filtered out.
			w.Write([]byte(`{"objectID":102,"title":"Private","primaryImage":"https://images.met/102.jpg","isPublicDomain":false}`))
		case r.URL.Path == "/objects/103":
			// Wrong classification: must be filtered out.
			w.Write([]byte(`{"objectID":103,"title":"Vase","primaryImage":"https://images.met/103.jpg",
				"classification":"Ceramics","isPublicDomain":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m := NewMetAdapter(srv.URL)
	works, err := m.Search(context.Background(), "water lilies", 10, 0)
	require.NoError(t, err)

	require.Len(t, works, 1)
	assert.Equal(t, "met-101", works[0].ID)
	assert.Equal(t, "Claude Monet", works[0].Artist)
	assert.Equal(t, "met", works[0].Source)
	assert.Equal(t, "https://images.met/101.jpg", works[0].ImageURL)
}

func TestMetAdapterPreservesUpstreamOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/search") {
			w.Write([]byte(`{"total":3,"objectIDs":[3,1,2]}`))
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/objects/")
		w.Write([]byte(`{"objectID":` + id + `,"title":"t` + id + `",
			"primaryImage":"https://i/` + id + `.jpg","classification":"Paintings","isPublicDomain":true}`))
	}))
	defer srv.Close()

	m := NewMetAdapter(srv.URL)
	works, err := m.Search(context.Background(), "q", 3, 0)
	require.NoError(t, err)
	require.Len(t, works, 3)
	assert.Equal(t, []string{"met-3", "met-1", "met-2"},
		[]string{works[0].ID, works[1].ID, works[2].ID})
}

func TestMetAdapterRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	m := NewMetAdapter(srv.URL)
	_, err := m.Search(context.Background(), "q", 5, 0)
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestArticAdapterSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/artworks/search", r.URL.Path)
		w.Write([]byte(`{"data":[
			{"id":27992,"title":"A Sunday on La Grande Jatte","artist_display":"Georges Seurat",
			 "date_display":"1884","image_id":"abc-123","department_title":"Painting and Sculpture of Europe",
			 "is_public_domain":true},
			{"id":1,"title":"No image","artist_display":"X","image_id":"","is_public_domain":true},
			{"id":2,"title":"Restricted","artist_display":"Y","image_id":"def","is_public_domain":false}
		]}`))
	}))
	defer srv.Close()

	a := NewArticAdapter(srv.URL)
	works, err := a.Search(context.Background(), "seurat", 10, 0)
	require.NoError(t, err)

	require.Len(t, works, 1)
	assert.Equal(t, "artic-27992", works[0].ID)
	assert.Equal(t, srv.URL+"/iiif/2/abc-123/full/1686,/0/default.jpg", works[0].ImageURL)
	assert.Equal(t, srv.URL+"/iiif/2/abc-123/full/400,/0/default.jpg", works[0].ThumbnailURL)
}

func TestClevelandAdapterSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"id":94979,"title":"Water Lilies","type":"Painting","department":"Modern European Painting",
			 "share_license_status":"CC0","creation_date":"1916",
			 "creators":[{"description":"Claude Monet (French, 1840-1926)"}],
			 "images":{"web":{"url":"https://cma/web.jpg"},"print":{"url":"https://cma/print.jpg"}}},
			{"id":1,"title":"Sculpture","type":"Sculpture","share_license_status":"CC0",
			 "images":{"web":{"url":"https://cma/s.jpg"}}}
		]}`))
	}))
	defer srv.Close()

	c := NewClevelandAdapter(srv.URL)
	works, err := c.Search(context.Background(), "water", 10, 0)
	require.NoError(t, err)

	require.Len(t, works, 1)
	assert.Equal(t, "cleveland-94979", works[0].ID)
	assert.Equal(t, "Claude Monet", works[0].Artist, "life dates stripped")
	assert.Equal(t, "https://cma/print.jpg", works[0].ImageURL, "print image preferred")
	assert.Equal(t, "https://cma/web.jpg", works[0].ThumbnailURL)
}

func TestRijksAdapterSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write([]byte(`{"artObjects":[
			{"objectNumber":"SK-C-5","title":"The Night Watch","principalOrFirstMaker":"Rembrandt van Rijn",
			 "longTitle":"The Night Watch, Rembrandt van Rijn, 1642",
			 "webImage":{"url":"https://rijks/full.jpg"},"headerImage":{"url":"https://rijks/header.jpg"}}
		]}`))
	}))
	defer srv.Close()

	r := NewRijksAdapter(srv.URL, "test-key")
	works, err := r.Search(context.Background(), "night watch", 10, 0)
	require.NoError(t, err)

	require.Len(t, works, 1)
	assert.Equal(t, "rijks-SK-C-5", works[0].ID)
	assert.Equal(t, "1642", works[0].Date)
}

func TestWikimediaAdapterSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query":{"pages":{
			"1":{"pageid":1,"title":"File:Starry Night.jpg","imageinfo":[
				{"url":"https://commons/starry.jpg","thumburl":"https://commons/starry-400.jpg",
				 "extmetadata":{"Artist":{"value":"<a href=\"#\">Vincent van Gogh</a>"},
				   "DateTimeOriginal":{"value":"1889"},
				   "LicenseShortName":{"value":"Public domain"}}}]},
			"2":{"pageid":2,"title":"File:Modern.jpg","imageinfo":[
				{"url":"https://commons/modern.jpg",
				 "extmetadata":{"LicenseShortName":{"value":"All rights reserved"}}}]}
		}}}`))
	}))
	defer srv.Close()

	wa := NewWikimediaAdapter(srv.URL)
	works, err := wa.Search(context.Background(), "starry night", 10, 0)
	require.NoError(t, err)

	require.Len(t, works, 1)
	assert.Equal(t, "wikimedia-1", works[0].ID)
	assert.Equal(t, "Starry Night.jpg", works[0].Title)
	assert.Equal(t, "Vincent van Gogh", works[0].Artist, "HTML markup stripped")
}

func TestCuratedAdapter(t *testing.T) {
	c := NewCuratedAdapter(nil)

	works, err := c.Search(context.Background(), "van gogh", 10, 0)
	require.NoError(t, err)
	require.Len(t, works, 1)
	assert.Equal(t, "curated-starry-night", works[0].ID)

	all, err := c.Search(context.Background(), "", 3, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	w, err := c.Random(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "curated", w.Source)
}

func TestGetJSONUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var out struct{}
	err := getJSON(context.Background(), srv.Client(), nil, srv.URL, &out)
	require.ErrorIs(t, err, ErrUpstream)
}
