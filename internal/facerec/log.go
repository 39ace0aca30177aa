package facerec

import "github.com/sirupsen/logrus"

var log = logrus.WithField("component", "facerec")
