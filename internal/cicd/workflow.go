package cicd

import "fmt"

// WorkflowConfig generates the GitHub Actions workflow YAML for a
// service. The pipeline shape depends on the service type: api and
// worker services get a Python test/security/build/deploy pipeline,
// web services get a Node build that publishes static assets.
func WorkflowConfig(serviceName, team, serviceType, org string) (string, error) {
	switch serviceType {
	case "api":
		return apiWorkflow(serviceName, team, org), nil
	case "web":
		return webWorkflow(serviceName, team), nil
	case "worker":
		return workerWorkflow(serviceName, team, org), nil
	default:
		return "", fmt.Errorf("no workflow template for service type %q", serviceType)
	}
}

func apiWorkflow(serviceName, team, org string) string {
	return fmt.Sprintf(`name: CI/CD Pipeline - %[1]s

on:
  push:
    branches: [ main, develop ]
  pull_request:
    branches: [ main ]

env:
  SERVICE_NAME: %[1]s
  TEAM: %[2]s
  REGISTRY: ghcr.io/%[3]s

jobs:
  test:
    runs-on: ubuntu-latest
    steps:
    - uses: actions/checkout@v4

    - name: Set up Python
      uses: actions/setup-python@v4
      with:
        python-version: '3.11'

    - name: Cache pip dependencies
      uses: actions/cache@v3
      with:
        path: ~/.cache/pip
        key: ${{ runner.os }}-pip-${{ hashFiles('**/requirements.txt') }}
        restore-keys: |
          ${{ runner.os }}-pip-

    - name: Install dependencies
      run: |
        python -m pip install --upgrade pip
        pip install -r requirements.txt
        pip install -r requirements-dev.txt

    - name: Lint with flake8
      run: |
        flake8 . --count --select=E9,F63,F7,F82 --show-source --statistics
        flake8 . --count --exit-zero --max-complexity=10 --max-line-length=127 --statistics

    - name: Format check with black
      run: |
        black --check --diff .

    - name: Run tests with pytest
      run: |
        pytest --cov=app --cov-report=xml

    - name: Upload coverage to Codecov
      uses: codecov/codecov-action@v3
      with:
        file: ./coverage.xml
        flags: unittests
        name: codecov-umbrella

  security:
    runs-on: ubuntu-latest
    steps:
    - uses: actions/checkout@v4

    - name: Set up Python
      uses: actions/setup-python@v4
      with:
        python-version: '3.11'

    - name: Run security scan
      run: |
        pip install bandit safety
        bandit -r app/ -f json -o bandit-report.json
        safety check --json --output safety-report.json

    - name: Upload security reports
      uses: actions/upload-artifact@v3
      with:
        name: security-reports
        path: |
          bandit-report.json
          safety-report.json

  build:
    runs-on: ubuntu-latest
    needs: [test, security]
    if: github.ref == 'refs/heads/main'
    steps:
    - uses: actions/checkout@v4

    - name: Set up Docker Buildx
      uses: docker/setup-buildx-action@v3

    - name: Log in to Container Registry
      uses: docker/login-action@v3
      with:
        registry: ghcr.io
        username: ${{ github.actor }}
        password: ${{ secrets.GITHUB_TOKEN }}

    - name: Build and push Docker image
      uses: docker/build-push-action@v5
      with:
        context: .
        push: true
        tags: |
          ${{ env.REGISTRY }}/${{ env.SERVICE_NAME }}:${{ github.sha }}
          ${{ env.REGISTRY }}/${{ env.SERVICE_NAME }}:latest
        cache-from: type=gha
        cache-to: type=gha,mode=max

  deploy:
    runs-on: ubuntu-latest
    needs: build
    if: github.ref == 'refs/heads/main'
    steps:
    - uses: actions/checkout@v4

    - name: Set up kubectl
      uses: azure/setup-kubectl@v3
      with:
        version: 'latest'

    - name: Configure kubectl
      run: |
        echo "${{ secrets.KUBE_CONFIG }}" | base64 -d > kubeconfig.yaml
        export KUBECONFIG=kubeconfig.yaml

    - name: Deploy to Kubernetes
      run: |
        kubectl apply -f k8s/
        kubectl rollout status deployment/${{ env.SERVICE_NAME }}

    - name: Run smoke tests
      run: |
        sleep 30
        curl -f http://${{ env.SERVICE_NAME }}/health || exit 1

    - name: Health check
      run: |
        curl -f http://${{ env.SERVICE_NAME }}/health
        echo "Service is healthy!"
`, serviceName, team, org)
}

func webWorkflow(serviceName, team string) string {
	return fmt.Sprintf(`name: CI/CD Pipeline - %[1]s

on:
  push:
    branches: [ main, develop ]
  pull_request:
    branches: [ main ]

env:
  SERVICE_NAME: %[1]s
  TEAM: %[2]s

jobs:
  test:
    runs-on: ubuntu-latest
    steps:
    - uses: actions/checkout@v4

    - name: Set up Node.js
      uses: actions/setup-node@v4
      with:
        node-version: '18'
        cache: 'npm'

    - name: Install dependencies
      run: npm ci

    - name: Lint with ESLint
      run: npm run lint

    - name: Format check with Prettier
      run: npm run format:check

    - name: Run unit tests
      run: npm run test:unit

    - name: Run visual regression tests
      run: npm run test:visual
      if: ${{ github.event_name == 'pull_request' }}

  build:
    runs-on: ubuntu-latest
    needs: test
    if: github.ref == 'refs/heads/main'
    steps:
    - uses: actions/checkout@v4

    - name: Set up Node.js
      uses: actions/setup-node@v4
      with:
        node-version: '18'
        cache: 'npm'

    - name: Install dependencies
      run: npm ci

    - name: Build application
      run: npm run build

    - name: Configure AWS credentials
      uses: aws-actions/configure-aws-credentials@v4
      with:
        aws-access-key-id: ${{ secrets.AWS_ACCESS_KEY_ID }}
        aws-secret-access-key: ${{ secrets.AWS_SECRET_ACCESS_KEY }}
        aws-region: eu-west-2

    - name: Deploy to S3
      run: |
        aws s3 sync dist/ s3://platformdavid-web-assets/${{ env.SERVICE_NAME }}/
        aws cloudfront create-invalidation --distribution-id ${{ secrets.CLOUDFRONT_DISTRIBUTION_ID }} --paths "/*"

    - name: Run smoke tests
      run: |
        sleep 30
        curl -f https://${{ env.SERVICE_NAME }}.platformdavid.com/ || exit 1

    - name: Health check
      run: |
        curl -f https://${{ env.SERVICE_NAME }}.platformdavid.com/
        echo "Website is live!"
`, serviceName, team)
}

func workerWorkflow(serviceName, team, org string) string {
	return fmt.Sprintf(`name: CI/CD Pipeline - %[1]s

on:
  push:
    branches: [ main, develop ]
  pull_request:
    branches: [ main ]

env:
  SERVICE_NAME: %[1]s
  TEAM: %[2]s
  REGISTRY: ghcr.io/%[3]s

jobs:
  test:
    runs-on: ubuntu-latest
    steps:
    - uses: actions/checkout@v4

    - name: Set up Python
      uses: actions/setup-python@v4
      with:
        python-version: '3.11'

    - name: Cache pip dependencies
      uses: actions/cache@v3
      with:
        path: ~/.cache/pip
        key: ${{ runner.os }}-pip-${{ hashFiles('**/requirements.txt') }}
        restore-keys: |
          ${{ runner.os }}-pip-

    - name: Install dependencies
      run: |
        python -m pip install --upgrade pip
        pip install -r requirements.txt
        pip install -r requirements-dev.txt

    - name: Lint with flake8
      run: |
        flake8 . --count --select=E9,F63,F7,F82 --show-source --statistics
        flake8 . --count --exit-zero --max-complexity=10 --max-line-length=127 --statistics

    - name: Format check with black
      run: |
        black --check --diff .

    - name: Run worker tests
      run: |
        pytest tests/test_worker.py --cov=app --cov-report=xml

    - name: Upload coverage to Codecov
      uses: codecov/codecov-action@v3
      with:
        file: ./coverage.xml
        flags: workertests
        name: codecov-umbrella

  security:
    runs-on: ubuntu-latest
    steps:
    - uses: actions/checkout@v4

    - name: Set up Python
      uses: actions/setup-python@v4
      with:
        python-version: '3.11'

    - name: Run security scan
      run: |
        pip install bandit safety
        bandit -r app/ -f json -o bandit-report.json
        safety check --json --output safety-report.json

    - name: Upload security reports
      uses: actions/upload-artifact@v3
      with:
        name: security-reports
        path: |
          bandit-report.json
          safety-report.json

  build:
    runs-on: ubuntu-latest
    needs: [test, security]
    if: github.ref == 'refs/heads/main'
    steps:
    - uses: actions/checkout@v4

    - name: Set up Docker Buildx
      uses: docker/setup-buildx-action@v3

    - name: Log in to Container Registry
      uses: docker/login-action@v3
      with:
        registry: ghcr.io
        username: ${{ github.actor }}
        password: ${{ secrets.GITHUB_TOKEN }}

    - name: Build and push worker image
      uses: docker/build-push-action@v5
      with:
        context: .
        dockerfile: Dockerfile.worker
        push: true
        tags: |
          ${{ env.REGISTRY }}/${{ env.SERVICE_NAME }}-worker:${{ github.sha }}
          ${{ env.REGISTRY }}/${{ env.SERVICE_NAME }}-worker:latest
        cache-from: type=gha
        cache-to: type=gha,mode=max

  deploy:
    runs-on: ubuntu-latest
    needs: build
    if: github.ref == 'refs/heads/main'
    steps:
    - uses: actions/checkout@v4

    - name: Set up kubectl
      uses: azure/setup-kubectl@v3
      with:
        version: 'latest'

    - name: Configure kubectl
      run: |
        echo "${{ secrets.KUBE_CONFIG }}" | base64 -d > kubeconfig.yaml
        export KUBECONFIG=kubeconfig.yaml

    - name: Deploy worker to Kubernetes
      run: |
        kubectl apply -f k8s/worker.yaml
        kubectl rollout status deployment/${{ env.SERVICE_NAME }}-worker

    - name: Run smoke tests
      run: |
        sleep 30
        curl -f http://${{ env.SERVICE_NAME }}-worker/health || exit 1
`, serviceName, team, org)
}
