package cicd

import "fmt"

// StarterFiles generates the initial file set committed to a new
// service repository. The contents are what the generated workflow
// expects to find: requirements, an app with a health endpoint, tests,
// a Dockerfile and Kubernetes manifests.
func StarterFiles(serviceName, serviceType, registry, org string) map[string]string {
	files := map[string]string{
		"requirements.txt":     requirementsTxt,
		"requirements-dev.txt": requirementsDevTxt,
		"app/__init__.py":      "",
		"app/main.py":          mainPy(serviceName),
		"tests/__init__.py":    "",
		"tests/test_main.py":   testMainPy(serviceName),
		"k8s/deployment.yaml":  deploymentYAML(serviceName, registry, org),
		"k8s/service.yaml":     serviceYAML(serviceName),
		"Dockerfile":           dockerfile,
		"README.md":            readme(serviceName),
		".gitignore":           gitignore,
	}

	if serviceType == "worker" {
		files["tests/test_worker.py"] = testWorkerPy(serviceName)
		files["Dockerfile.worker"] = dockerfile
		files["k8s/worker.yaml"] = deploymentYAML(serviceName+"-worker", registry, org)
	}

	return files
}

const requirementsTxt = `fastapi
uvicorn[standard]
pydantic
pydantic-settings
`

const requirementsDevTxt = `pytest==7.4.3
pytest-cov
pytest-asyncio==0.21.1
flake8==6.1.0
black==23.12.1
isort==5.12.0
bandit
safety
httpx==0.25.2
`

func mainPy(serviceName string) string {
	return fmt.Sprintf(`from fastapi import FastAPI

app = FastAPI()


@app.get("/health")
def health():
    return {"status": "healthy"}


@app.get("/")
def root():
    return {"message": "Hello from %s"}
`, serviceName)
}

func testMainPy(serviceName string) string {
	return fmt.Sprintf(`from fastapi.testclient import TestClient
from app.main import app

client = TestClient(app)


def test_health_endpoint():
    response = client.get("/health")
    assert response.status_code == 200
    assert response.json() == {"status": "healthy"}


def test_root_endpoint():
    response = client.get("/")
    assert response.status_code == 200
    assert response.json() == {"message": "Hello from %s"}
`, serviceName)
}

func testWorkerPy(serviceName string) string {
	return fmt.Sprintf(`from fastapi.testclient import TestClient
from app.main import app

client = TestClient(app)


def test_worker_health():
    response = client.get("/health")
    assert response.status_code == 200
    assert response.json() == {"status": "healthy"}


def test_worker_identity():
    response = client.get("/")
    assert "%s" in response.json()["message"]
`, serviceName)
}

func deploymentYAML(serviceName, registry, org string) string {
	return fmt.Sprintf(`apiVersion: apps/v1
kind: Deployment
metadata:
  name: %[1]s
spec:
  replicas: 1
  selector:
    matchLabels:
      app: %[1]s
  template:
    metadata:
      labels:
        app: %[1]s
    spec:
      containers:
      - name: %[1]s
        image: %[2]s/%[3]s/%[1]s:latest
        ports:
        - containerPort: 8000
        livenessProbe:
          httpGet:
            path: /health
            port: 8000
          initialDelaySeconds: 30
          periodSeconds: 10
`, serviceName, registry, org)
}

func serviceYAML(serviceName string) string {
	return fmt.Sprintf(`apiVersion: v1
kind: Service
metadata:
  name: %[1]s
spec:
  selector:
    app: %[1]s
  ports:
  - port: 80
    targetPort: 8000
  type: ClusterIP
`, serviceName)
}

const dockerfile = `FROM python:3.11-slim

WORKDIR /app

COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt

COPY app/ ./app/

EXPOSE 8000

CMD ["uvicorn", "app.main:app", "--host", "0.0.0.0", "--port", "8000"]
`

func readme(serviceName string) string {
	return fmt.Sprintf("# %s\n\nService created by the platform engineering API.\n", serviceName)
}

const gitignore = `__pycache__/
*.py[cod]
*.so

build/
dist/
*.egg-info/

htmlcov/
.coverage
.coverage.*
coverage.xml
.pytest_cache/

.env
.venv
env/
venv/

.mypy_cache/
.ruff_cache/
`
