package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicgraph/orgscope/internal/model"
)

func newsCand(title, url string, published *time.Time) model.NewsCandidate {
	return model.NewsCandidate{Title: title, SourceURL: url, PublishedAt: published}
}

func TestMergeNewsAppendsUnseen(t *testing.T) {
	t.Parallel()

	older := baseTime.Add(-24 * time.Hour)
	profile := &model.OrganizationProfile{
		Name: "The Group",
		News: []model.NewsItem{
			{Title: "Existing story", SourceURL: "https://news.org/existing", PublishedAt: &older},
		},
	}

	mergeNews(profile, []model.NewsCandidate{
		newsCand("Fresh story", "https://news.org/fresh", &baseTime),
		newsCand("Existing story again", "https://news.org/existing/", nil),
		newsCand("", "https://news.org/untitled", nil),
	})

	require.Len(t, profile.News, 2)
	// Newest first.
	assert.Equal(t, "Fresh story", profile.News[0].Title)
	assert.Equal(t, "Existing story", profile.News[1].Title)
}

func TestMergeNewsNilDatesSortLast(t *testing.T) {
	t.Parallel()

	profile := &model.OrganizationProfile{Name: "The Group"}
	mergeNews(profile, []model.NewsCandidate{
		newsCand("B undated", "https://news.org/b", nil),
		newsCand("A undated", "https://news.org/a", nil),
		newsCand("Dated", "https://news.org/dated", &baseTime),
	})

	require.Len(t, profile.News, 3)
	assert.Equal(t, "Dated", profile.News[0].Title)
	assert.Equal(t, "A undated", profile.News[1].Title)
	assert.Equal(t, "B undated", profile.News[2].Title)
}

func TestMergeNewsCapped(t *testing.T) {
	t.Parallel()

	profile := &model.OrganizationProfile{Name: "The Group"}
	var cands []model.NewsCandidate
	for i := 0; i < maxNewsItems+10; i++ {
		ts := baseTime.Add(time.Duration(i) * time.Minute)
		cands = append(cands, newsCand(
			fmt.Sprintf("Story %02d", i),
			fmt.Sprintf("https://news.org/%d", i),
			&ts,
		))
	}

	mergeNews(profile, cands)
	assert.Len(t, profile.News, maxNewsItems)
	// The newest items survive the cap.
	assert.Equal(t, fmt.Sprintf("Story %02d", maxNewsItems+9), profile.News[0].Title)
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	release := km.Lock("the group")

	acquired := make(chan struct{})
	go func() {
		r := km.Lock("the group")
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after release")
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	releaseA := km.Lock("org a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB := km.Lock("org b")
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different keys should not contend")
	}
}
