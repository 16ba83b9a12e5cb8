package clients

import (
	"net/http"

	"github.com/ONSdigital/ras-rm-enrolment/models"
)

// CollectionExerciseClient talks to the Collection Exercise service.
type CollectionExerciseClient struct {
	baseURL string
	client  *http.Client
}

// Get resolves a collection exercise, principally for its survey id.
func (c *CollectionExerciseClient) Get(id string) (*models.CollectionExercise, error) {
	exercise := &models.CollectionExercise{}
	if err := getJSON(c.client, "Collection Exercise", c.baseURL+"/collectionexercises/"+id, exercise); err != nil {
		return nil, err
	}
	return exercise, nil
}
