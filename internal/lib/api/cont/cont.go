package cont

import "context"

type ctxKey string

const ActivityIDKey ctxKey = "activityID"

func PutActivityID(c context.Context, id string) context.Context {
	return context.WithValue(c, ActivityIDKey, id)
}

func GetActivityID(c context.Context) string {
	id, _ := c.Value(ActivityIDKey).(string)
	return id
}
